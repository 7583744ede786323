package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/videobridge/capturehal/internal/api/models"
	"github.com/videobridge/capturehal/internal/hal"
)

// registerAttachmentRoutes registers surface attachment endpoints.
func (s *Server) registerAttachmentRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-attachments",
		Method:      http.MethodGet,
		Path:        "/api/attachments",
		Summary:     "List Attachments",
		Description: "Enumerate active surface attachments",
		Tags:        []string{"attachments"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.AttachmentListResponse, error) {
		attachments := s.service.Attachments()
		return &models.AttachmentListResponse{
			Body: models.AttachmentListData{
				Attachments: attachments,
				Count:       len(attachments),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "attach-stream",
		Method:      http.MethodPut,
		Path:        "/api/devices/{device_id}/streams/{stream_id}/surface",
		Summary:     "Attach Surface",
		Description: "Create a surface for the stream and start frame delivery. Re-attaching an already attached stream rebinds its surface.",
		Tags:        []string{"attachments"},
		Errors:      []int{400, 401, 404, 502, 503, 504},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		DeviceID int `path:"device_id" example:"1" doc:"Device identifier"`
		StreamID int `path:"stream_id" example:"20" doc:"Stream identifier"`
	}) (*models.AttachmentResponse, error) {
		if err := s.service.Attach(input.DeviceID, input.StreamID); err != nil {
			return nil, s.mapBridgeError(err)
		}
		for _, att := range s.service.Attachments() {
			if att.DeviceID == input.DeviceID && att.StreamID == input.StreamID {
				return &models.AttachmentResponse{Body: att}, nil
			}
		}
		return nil, huma.Error500InternalServerError("attachment not recorded")
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "detach-stream",
		Method:      http.MethodDelete,
		Path:        "/api/devices/{device_id}/streams/{stream_id}/surface",
		Summary:     "Detach Surface",
		Description: "Stop frame delivery and release the stream's surface",
		Tags:        []string{"attachments"},
		Errors:      []int{400, 401, 404, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		DeviceID int `path:"device_id" example:"1" doc:"Device identifier"`
		StreamID int `path:"stream_id" example:"20" doc:"Stream identifier"`
	}) (*struct{}, error) {
		if err := s.service.Detach(input.DeviceID, input.StreamID); err != nil {
			return nil, s.mapBridgeError(err)
		}
		return &struct{}{}, nil
	})
}

// mapBridgeError translates capture bridge errors to HTTP errors.
func (s *Server) mapBridgeError(err error) error {
	if errors.Is(err, hal.ErrSessionClosed) {
		return huma.Error503ServiceUnavailable("capture session is closed", err)
	}
	switch hal.CodeOf(err) {
	case hal.ErrCodeNotFound:
		return huma.Error404NotFound(err.Error(), err)
	case hal.ErrCodeBadValue:
		return huma.Error400BadRequest(err.Error(), err)
	case hal.ErrCodeDriverError:
		return huma.Error502BadGateway(err.Error(), err)
	case hal.ErrCodeTimeout:
		return huma.Error504GatewayTimeout(err.Error(), err)
	default:
		return huma.Error500InternalServerError("internal server error", err)
	}
}
