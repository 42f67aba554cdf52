package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"efd/chains"
)

const maxFrameSize = 1 << 20

type ipcRequest struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type ipcResponse struct {
	ID     uint64      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

type ipcEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type ipcConn struct {
	net.Conn
	writeMu sync.Mutex
}

func (c *ipcConn) send(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeIpcFrame(c.Conn, v)
}

// ipcServer lets an out-of-process frontend drive a session. Requests and
// responses are length-prefixed JSON frames; subscribers to the "state"
// channel receive every new snapshot as an event.
type ipcServer struct {
	ctrl     commands
	registry chains.Registry
	log      zerolog.Logger

	mu          sync.Mutex
	subscribers map[*ipcConn]map[string]bool
}

func newIpcServer(ctrl commands, registry chains.Registry, log zerolog.Logger) *ipcServer {
	return &ipcServer{
		ctrl:        ctrl,
		registry:    registry,
		log:         log,
		subscribers: make(map[*ipcConn]map[string]bool),
	}
}

// Serve accepts connections on listener until ctx is done.
func (s *ipcServer) Serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	go s.stateBroadcastLoop(ctx)

	s.log.Info().Str("addr", listener.Addr().String()).Msg("listening")
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ipc accept: %w", err)
		}
		go s.handleConn(&ipcConn{Conn: conn})
	}
}

func (s *ipcServer) handleConn(conn *ipcConn) {
	defer func() {
		s.mu.Lock()
		delete(s.subscribers, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		req, err := readIpcFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Warn().Err(err).Msg("read failed")
			}
			return
		}

		result, errStr := s.dispatch(req, conn)
		resp := ipcResponse{ID: req.ID}
		if errStr != "" {
			resp.Error = errStr
		} else {
			resp.Result = result
		}
		if err := conn.send(resp); err != nil {
			s.log.Warn().Err(err).Msg("write failed")
			return
		}
	}
}

func (s *ipcServer) dispatch(req *ipcRequest, conn *ipcConn) (interface{}, string) {
	switch req.Method {
	case "session/state":
		return newStateView(s.ctrl.Snapshot()), ""

	case "session/navigate":
		var params struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, "invalid params: " + err.Error()
		}
		if params.Query == "" {
			return nil, "query is required"
		}
		s.ctrl.NavigateTo(params.Query)
		return map[string]interface{}{"query": params.Query}, ""

	case "session/connect":
		s.ctrl.ConnectWallet()
		return map[string]interface{}{"status": "requested"}, ""

	case "session/refresh":
		var params struct {
			Target string `json:"target"`
		}
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				return nil, "invalid params: " + err.Error()
			}
		}
		switch params.Target {
		case "", "displayed":
			s.ctrl.RefreshDisplayedUser()
		case "current":
			s.ctrl.RefreshCurrentUser()
		default:
			return nil, "unknown refresh target: " + params.Target
		}
		return map[string]interface{}{"status": "requested"}, ""

	case "networks":
		return s.networks(), ""

	case "subscribe":
		var params struct {
			Channel string `json:"channel"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, "invalid params: " + err.Error()
		}
		if params.Channel != "state" {
			return nil, "unknown channel: " + params.Channel
		}
		s.mu.Lock()
		if s.subscribers[conn] == nil {
			s.subscribers[conn] = make(map[string]bool)
		}
		s.subscribers[conn][params.Channel] = true
		s.mu.Unlock()
		return map[string]interface{}{"subscribed": params.Channel}, ""

	default:
		return nil, "unknown method: " + req.Method
	}
}

func (s *ipcServer) networks() []map[string]interface{} {
	var out []map[string]interface{}
	for _, id := range s.registry.ChainIDs() {
		d, _ := s.registry.Lookup(id)
		out = append(out, map[string]interface{}{
			"chainId": id,
			"network": chains.Name(id),
			"contracts": map[string]string{
				chains.ContractDirectory:      d.Directory.Hex(),
				chains.ContractReverseRecords: d.ReverseRecords.Hex(),
				chains.ContractENSRegistry:    d.ENSRegistry.Hex(),
				chains.ContractPublicResolver: d.PublicResolver.Hex(),
			},
		})
	}
	return out
}

func (s *ipcServer) stateBroadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case state := <-s.ctrl.Changes():
			s.broadcast("state", newStateView(state))
		}
	}
}

func (s *ipcServer) broadcast(channel string, data interface{}) {
	s.mu.Lock()
	var conns []*ipcConn
	for conn, channels := range s.subscribers {
		if channels[channel] {
			conns = append(conns, conn)
		}
	}
	s.mu.Unlock()

	evt := ipcEvent{Event: channel, Data: data}
	for _, conn := range conns {
		if err := conn.send(evt); err != nil {
			s.log.Debug().Err(err).Msg("dropping subscriber")
			s.mu.Lock()
			delete(s.subscribers, conn)
			s.mu.Unlock()
		}
	}
}

func readIpcFrame(r io.Reader) (*ipcRequest, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])
	if length > maxFrameSize {
		return nil, fmt.Errorf("frame too large: %d", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	var req ipcRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func writeIpcFrame(w io.Writer, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}
