package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/harun/toolgate/internal/tracing"
	"github.com/harun/toolgate/pkg/adapters"
	"github.com/harun/toolgate/pkg/toolexecutor"
)

// ToolDescriptor is the public description of a registered tool.
type ToolDescriptor struct {
	Name                 string                   `json:"name"`
	Description          string                   `json:"description"`
	RiskLevel            toolexecutor.RiskLevel   `json:"riskLevel"`
	RequiresConfirmation bool                     `json:"requiresConfirmation"`
	Retry                toolexecutor.RetryConfig `json:"retry"`
	Parameters           map[string]interface{}   `json:"parameters"`
}

// DescribeTool builds the descriptor served by tools.list and tools.describe.
func DescribeTool(tool *toolexecutor.Tool) ToolDescriptor {
	return ToolDescriptor{
		Name:                 tool.Name(),
		Description:          tool.Description(),
		RiskLevel:            tool.RiskLevel(),
		RequiresConfirmation: tool.RequiresConfirmation(),
		Retry:                tool.Retry(),
		Parameters:           tool.Schema().JSONSchema(),
	}
}

func (s *Server) registerBuiltinMethods() {
	_ = s.router.RegisterMethod("tools.list", s.handleToolsList)
	_ = s.router.RegisterMethod("tools.describe", s.handleToolsDescribe)
	_ = s.router.RegisterMethod("tools.execute", s.handleToolsExecute)
	_ = s.router.RegisterMethod("gateway.clients", s.handleGatewayClients)
	_ = s.router.RegisterMethod("session.identify", s.handleSessionIdentify)
}

func (s *Server) handleToolsList(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	tools := s.tools.List()
	descriptors := make([]ToolDescriptor, 0, len(tools))
	for _, tool := range tools {
		descriptors = append(descriptors, DescribeTool(tool))
	}
	return map[string]interface{}{"tools": descriptors}, nil
}

func (s *Server) handleToolsDescribe(_ context.Context, params map[string]interface{}) (interface{}, error) {
	name, err := requireString(params, "name")
	if err != nil {
		return nil, err
	}
	tool, err := s.tools.Get(name)
	if err != nil {
		return nil, toRPCError(err)
	}
	return DescribeTool(tool), nil
}

// handleToolsExecute runs a tool. params: name (required), args, context,
// options. A WebSocket call without context runs as the identity the client
// declared through session.identify.
func (s *Server) handleToolsExecute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	name, err := requireString(params, "name")
	if err != nil {
		return nil, err
	}

	var args map[string]interface{}
	if raw, ok := params["args"]; ok && raw != nil {
		args, ok = raw.(map[string]interface{})
		if !ok {
			return nil, &RPCError{Code: InvalidParams, Message: "args must be an object"}
		}
	}

	from := callerFromContext(ctx)

	var execCtx toolexecutor.ExecutionContext
	if _, explicit := params["context"]; explicit || from.clientID == "" {
		if err := decodeParam(params, "context", &execCtx); err != nil {
			return nil, err
		}
	} else if identity, ok := s.clients.Identity(from.clientID); ok {
		execCtx = identity
	}
	var opts toolexecutor.ExecutionOptions
	if err := decodeParam(params, "options", &opts); err != nil {
		return nil, err
	}

	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Debug().
		Str("tool", name).
		Str("clientId", from.clientID).
		Str("transport", from.transport).
		Str("role", toolexecutor.ResolveRole(execCtx)).
		Msg("Gateway executing tool")

	if from.clientID != "" {
		s.clients.RecordToolCall(from.clientID, name)
	}

	result, err := s.tools.Execute(ctx, name, args, execCtx, opts)
	if s.metrics != nil {
		s.metrics.ObserveOutcome(name, err)
	}
	if err != nil {
		return nil, toRPCError(err)
	}
	return result, nil
}

func (s *Server) handleGatewayClients(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"clients": s.clients.Snapshot()}, nil
}

// handleSessionIdentify sets the default execution context of the calling
// WebSocket client. params are an ExecutionContext: user, isAdmin, metadata.
func (s *Server) handleSessionIdentify(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	from := callerFromContext(ctx)
	if from.clientID == "" {
		return nil, &RPCError{Code: InvalidRequest, Message: "session.identify requires a WebSocket connection"}
	}

	var execCtx toolexecutor.ExecutionContext
	encoded, err := json.Marshal(params)
	if err == nil {
		err = json.Unmarshal(encoded, &execCtx)
	}
	if err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: fmt.Sprintf("invalid identity: %v", err)}
	}

	if err := s.clients.SetIdentity(from.clientID, execCtx); err != nil {
		return nil, err
	}

	userID := ""
	if execCtx.User != nil {
		userID = execCtx.User.ID
	}
	return map[string]interface{}{
		"clientId": from.clientID,
		"userId":   userID,
		"role":     toolexecutor.ResolveRole(execCtx),
	}, nil
}

// toRPCError maps an engine error to an RPC error whose data carries the
// stable engine code and the structured fields of the failure.
func toRPCError(err error) *RPCError {
	data := adapters.NewToolError(err)

	code := InternalError
	switch {
	case errors.Is(err, toolexecutor.ErrToolNotFound):
		code = MethodNotFound
	case data.Code == toolexecutor.CodeValidation:
		code = InvalidParams
	case data.Code == toolexecutor.CodeRiskViolation:
		code = RiskViolation
	case data.Code == toolexecutor.CodeConfirmationRequired:
		code = ConfirmationRequired
	}

	return &RPCError{Code: code, Message: err.Error(), Data: data}
}

func requireString(params map[string]interface{}, key string) (string, error) {
	value, _ := params[key].(string)
	if value == "" {
		return "", &RPCError{Code: InvalidParams, Message: fmt.Sprintf("%s is required", key)}
	}
	return value, nil
}

// decodeParam decodes params[key] into out through JSON. A missing key leaves
// out untouched.
func decodeParam(params map[string]interface{}, key string, out interface{}) error {
	raw, ok := params[key]
	if !ok || raw == nil {
		return nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return &RPCError{Code: InvalidParams, Message: fmt.Sprintf("invalid %s: %v", key, err)}
	}
	if err := json.Unmarshal(encoded, out); err != nil {
		return &RPCError{Code: InvalidParams, Message: fmt.Sprintf("invalid %s: %v", key, err)}
	}
	return nil
}
