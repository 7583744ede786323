package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/videobridge/capturehal/internal/api/models"
)

// registerDeviceRoutes registers device enumeration endpoints.
func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "Enumerate the currently announced capture devices",
		Tags:        []string{"devices"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.DeviceListResponse, error) {
		devices := s.service.Devices()
		return &models.DeviceListResponse{
			Body: models.DeviceListData{
				Devices: devices,
				Count:   len(devices),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-device",
		Method:      http.MethodGet,
		Path:        "/api/devices/{device_id}",
		Summary:     "Get Device",
		Description: "Get one announced capture device",
		Tags:        []string{"devices"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		DeviceID int `path:"device_id" example:"1" doc:"Device identifier"`
	}) (*models.DeviceResponse, error) {
		info, ok := s.service.Device(input.DeviceID)
		if !ok {
			return nil, huma.Error404NotFound("device not found")
		}
		return &models.DeviceResponse{Body: info}, nil
	})

	// Stream configurations are queried from the driver on every request
	// because they change whenever the signal source renegotiates.
	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream-configs",
		Method:      http.MethodGet,
		Path:        "/api/devices/{device_id}/streams",
		Summary:     "List Stream Configurations",
		Description: "Enumerate the device's current capture stream configurations",
		Tags:        []string{"devices"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		DeviceID int `path:"device_id" example:"1" doc:"Device identifier"`
	}) (*models.StreamConfigsResponse, error) {
		if _, ok := s.service.Device(input.DeviceID); !ok {
			return nil, huma.Error404NotFound("device not found")
		}
		configs := s.service.StreamConfigs(input.DeviceID)
		return &models.StreamConfigsResponse{
			Body: models.StreamConfigsData{
				DeviceID: input.DeviceID,
				Configs:  configs,
				Count:    len(configs),
			},
		}, nil
	})
}
