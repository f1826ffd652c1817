package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clinic-booking/internal/identity"
	"clinic-booking/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// TokenVerifier checks bearer tokens when the request did not pass through the
// API Gateway Cognito authorizer.
type TokenVerifier interface {
	Verify(token string) (identity.Principal, error)
}

type Services struct {
	Booking       BookingAPI
	Chat          ChatAPI
	Doctors       DoctorAPI
	Admin         AdminAPI
	Featured      FeaturedAPI
	Notifications NotificationAPI
}

type Handler struct {
	svc      Services
	verifier TokenVerifier
	validate *validator.Validate
	routes   map[string]routeFunc
	log      zerolog.Logger
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewHandler wires the API routes. verifier may be nil when every route sits
// behind the Cognito authorizer.
func NewHandler(svc Services, verifier TokenVerifier, log zerolog.Logger) (*Handler, error) {
	switch {
	case svc.Booking == nil:
		return nil, errors.New("handler: booking service must not be nil")
	case svc.Chat == nil:
		return nil, errors.New("handler: chat service must not be nil")
	case svc.Doctors == nil:
		return nil, errors.New("handler: doctor service must not be nil")
	case svc.Admin == nil:
		return nil, errors.New("handler: admin service must not be nil")
	case svc.Featured == nil:
		return nil, errors.New("handler: featured service must not be nil")
	case svc.Notifications == nil:
		return nil, errors.New("handler: notification service must not be nil")
	}
	h := &Handler{
		svc:      svc,
		verifier: verifier,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log.With().Str("component", "handler").Logger(),
	}
	h.routes = h.routeTable()
	return h, nil
}

// Handle serves one API Gateway proxy request.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := header(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := h.log.With().
		Str("correlation_id", correlationID).
		Str("method", req.HTTPMethod).
		Str("resource", req.Resource).
		Logger()

	status, body := h.dispatch(ctx, req)
	if status >= http.StatusInternalServerError {
		log.Error().Int("status", status).Msg("request failed")
	} else {
		log.Info().Int("status", status).Msg("request served")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		log.Error().Err(err).Msg("encode response")
		status = http.StatusInternalServerError
		payload, _ = json.Marshal(errorResponse{Error: string(usecase.ErrorInternal), Reason: "encode_error"})
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(payload),
	}, nil
}

func (h *Handler) dispatch(ctx context.Context, req events.APIGatewayProxyRequest) (int, any) {
	route, ok := h.routes[req.HTTPMethod+" "+req.Resource]
	if !ok {
		return http.StatusNotFound, errorResponse{Error: string(usecase.ErrorNotFound), Reason: "route_not_found"}
	}
	caller, err := h.caller(req)
	if err != nil {
		return errorStatus(err)
	}
	body, err := requestBody(req)
	if err != nil {
		return errorStatus(err)
	}
	status, out, err := route(ctx, request{
		caller: caller,
		body:   body,
		path:   req.PathParameters,
		query:  req.QueryStringParameters,
	})
	if err != nil {
		return errorStatus(err)
	}
	return status, out
}

// caller takes the subject from the authorizer claims, falling back to a bearer
// token. Requests with neither are anonymous.
func (h *Handler) caller(req events.APIGatewayProxyRequest) (usecase.Caller, error) {
	if claims, ok := req.RequestContext.Authorizer["claims"].(map[string]any); ok {
		if sub, ok := claims["sub"].(string); ok && sub != "" {
			return usecase.Caller{UserID: sub}, nil
		}
	}
	token := identity.BearerToken(header(req.Headers, "Authorization"))
	if token == "" || h.verifier == nil {
		return usecase.Caller{}, nil
	}
	p, err := h.verifier.Verify(token)
	if err != nil {
		return usecase.Caller{}, &usecase.Error{Code: usecase.ErrorUnauthenticated, Reason: "invalid_token", Err: err}
	}
	return usecase.Caller{UserID: p.UserID}, nil
}

func requestBody(req events.APIGatewayProxyRequest) ([]byte, error) {
	if !req.IsBase64Encoded {
		return []byte(req.Body), nil
	}
	b, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		return nil, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_body", Err: err}
	}
	return b, nil
}

func (h *Handler) decode(body []byte, v any) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "missing_body"}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_body", Err: err}
	}
	if err := h.validate.Struct(v); err != nil {
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_body", Err: err}
	}
	return nil
}

func errorStatus(err error) (int, errorResponse) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal), Reason: "unexpected_error"}
	}
	out := errorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason, Message: ucErr.Message}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, out
	case usecase.ErrorUnauthenticated:
		return http.StatusUnauthorized, out
	case usecase.ErrorForbidden:
		return http.StatusForbidden, out
	case usecase.ErrorNotFound:
		return http.StatusNotFound, out
	case usecase.ErrorConflict:
		return http.StatusConflict, out
	case usecase.ErrorUpstream:
		return http.StatusBadGateway, out
	}
	return http.StatusInternalServerError, out
}

// header looks name up case-insensitively.
func header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
