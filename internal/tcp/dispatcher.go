package tcp

import (
	"errors"
	"io"
	"log/slog"
	"net"

	"msghub/internal/protocol"
	"msghub/internal/storage"
)

// handler is one two-phase operation. validate inspects current state and
// the request payload without mutating anything persistent and produces a
// status; execute runs only after a successful validation, performs the
// operation and builds the response payload. execute may downgrade the
// status again when storage fails.
type handler struct {
	validate func(c *ClientConnection, fields map[string]string) protocol.Status
	execute  func(c *ClientConnection, fields map[string]string) (string, protocol.Status)
}

// Dispatcher turns a connection's stream of requests into operations against
// the store and the session directory. One dispatcher serves the whole
// server; per-connection state lives on the ClientConnection.
type Dispatcher struct {
	store    storage.Store
	registry *Registry
	evictor  *Evictor
	logger   *slog.Logger
	handlers map[string]handler
}

// NewDispatcher wires the static action table.
func NewDispatcher(store storage.Store, registry *Registry, evictor *Evictor, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		registry: registry,
		evictor:  evictor,
		logger:   logger,
	}
	d.handlers = map[string]handler{
		protocol.ActionLogin:       {d.validateLogin, d.executeLogin},
		protocol.ActionLogout:      {d.validateLogout, d.executeLogout},
		protocol.ActionInbox:       {d.validateBox, d.executeInbox},
		protocol.ActionOutbox:      {d.validateBox, d.executeOutbox},
		protocol.ActionSendMessage: {d.validateSendMessage, d.executeSendMessage},
		protocol.ActionAddUser:     {d.validateAddUser, d.executeAddUser},
		protocol.ActionUpdateUser:  {d.validateUpdateUser, d.executeUpdateUser},
		protocol.ActionRemoveUser:  {d.validateRemoveUser, d.executeRemoveUser},
		protocol.ActionListUsers:   {d.validateListUsers, d.executeListUsers},
	}
	return d
}

// Serve runs the per-connection loop: receive one line, dispatch, respond,
// repeat. End-of-stream, transport errors and undecodable envelopes all end
// the loop and tear the connection down; everything else is answered in-band
// and the loop continues. Requests on one connection are strictly
// sequential.
func (d *Dispatcher) Serve(c *ClientConnection) {
	defer c.Close()

	d.logger.Info("client_connected",
		"client_id", c.ID,
		"remote_addr", c.RemoteAddr(),
	)

	for {
		line, err := c.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				d.logger.Info("client_disconnected", "client_id", c.ID)
			} else {
				d.logger.Warn("client_read_error",
					"client_id", c.ID,
					"error", err.Error(),
				)
			}
			return
		}

		if len(line) > MaxLineSize {
			d.logger.Warn("request_too_large",
				"client_id", c.ID,
				"size", len(line),
			)
			return
		}

		if !c.Allow() {
			d.logger.Warn("rate_limit_exceeded", "client_id", c.ID)
			resp := protocol.Response{Status: protocol.StatusError}
			if err := c.Send(protocol.EncodeResponse(resp)); err != nil {
				return
			}
			continue
		}

		req, err := protocol.DecodeRequest(line)
		if err != nil {
			d.logger.Warn("undecodable_request",
				"client_id", c.ID,
				"error", err.Error(),
			)
			return
		}

		resp := d.Dispatch(c, req)
		if err := c.Send(protocol.EncodeResponse(resp)); err != nil {
			return
		}
	}
}

// Dispatch resolves one decoded request to its handler and runs the
// validate/execute pair. Unknown actions get a generic error response; the
// connection stays open.
func (d *Dispatcher) Dispatch(c *ClientConnection, req protocol.Request) protocol.Response {
	h, ok := d.handlers[req.Action]
	if !ok {
		d.logger.Warn("unknown_action",
			"client_id", c.ID,
			"action", req.Action,
		)
		return protocol.Response{Status: protocol.StatusError}
	}

	fields := protocol.ParseContent(req.Content)

	status := h.validate(c, fields)
	if status != protocol.StatusSuccess {
		d.logger.Info("request_rejected",
			"client_id", c.ID,
			"action", req.Action,
			"status", status.String(),
		)
		return protocol.Response{Status: status}
	}

	payload, status := h.execute(c, fields)
	d.logger.Info("request_handled",
		"client_id", c.ID,
		"action", req.Action,
		"status", status.String(),
	)
	return protocol.Response{Status: status, Content: payload}
}
