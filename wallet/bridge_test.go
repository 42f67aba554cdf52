package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"

	"efd/logging"
)

// fakeWallet is a websocket wallet host answering a fixed set of methods.
type fakeWallet struct {
	t        *testing.T
	server   *httptest.Server
	accounts []string
	reject   bool

	mu    sync.Mutex
	conn  *websocket.Conn
	ready chan struct{}
	calls []string
}

func newFakeWallet(t *testing.T) *fakeWallet {
	w := &fakeWallet{t: t, ready: make(chan struct{})}
	upgrader := websocket.Upgrader{}

	w.server = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		w.mu.Lock()
		w.conn = conn
		w.mu.Unlock()
		close(w.ready)
		w.serve(conn)
	}))
	t.Cleanup(w.server.Close)
	return w
}

func (w *fakeWallet) url() string {
	return "ws" + strings.TrimPrefix(w.server.URL, "http")
}

func (w *fakeWallet) serve(conn *websocket.Conn) {
	for {
		var req bridgeRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		w.mu.Lock()
		w.calls = append(w.calls, req.Method)
		w.mu.Unlock()

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		switch req.Method {
		case "eth_accounts":
			resp["result"] = w.accounts
		case "eth_requestAccounts":
			if w.reject {
				resp["error"] = map[string]interface{}{
					"code":    CodeUserRejected,
					"message": "User rejected the request.",
				}
			} else {
				resp["result"] = w.accounts
			}
		case "eth_chainId":
			resp["result"] = "0x7a69"
		case "eth_getCode":
			resp["result"] = "0x6080"
		case "eth_call":
			resp["result"] = hexutil.Encode(common.LeftPadBytes([]byte{0x2a}, 32))
		default:
			resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
		}

		w.mu.Lock()
		err := conn.WriteJSON(resp)
		w.mu.Unlock()
		if err != nil {
			return
		}
	}
}

func (w *fakeWallet) push(event string, data interface{}) {
	<-w.ready
	msg := map[string]interface{}{"event": event}
	if data != nil {
		raw, _ := json.Marshal(data)
		msg["data"] = json.RawMessage(raw)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteJSON(msg); err != nil {
		w.t.Fatalf("push failed: %v", err)
	}
}

func (w *fakeWallet) drop() {
	<-w.ready
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.Close()
}

func startBridge(t *testing.T, w *fakeWallet) (*Bridge, chan Event) {
	t.Helper()
	events := make(chan Event, 8)
	b := NewBridge(DefaultBridgeConfig(w.url()), logging.Nop())
	b.OnEvent = func(ev Event) { events <- ev }

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(b.Stop)
	return b, events
}

func waitEvent(t *testing.T, events chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for wallet event")
		return Event{}
	}
}

func TestBridgeAccountsAndChainID(t *testing.T) {
	w := newFakeWallet(t)
	w.accounts = []string{"0xabc0000000000000000000000000000000000001"}
	b, _ := startBridge(t, w)
	ctx := context.Background()

	accounts, err := b.Accounts(ctx)
	if err != nil {
		t.Fatalf("Accounts failed: %v", err)
	}
	if len(accounts) != 1 || accounts[0] != common.HexToAddress(w.accounts[0]) {
		t.Errorf("Unexpected accounts %v", accounts)
	}

	chainID, err := b.ChainID(ctx)
	if err != nil {
		t.Fatalf("ChainID failed: %v", err)
	}
	if chainID != 31337 {
		t.Errorf("Expected chain 31337, got %d", chainID)
	}
}

func TestBridgeRequestAccountsRejected(t *testing.T) {
	w := newFakeWallet(t)
	w.reject = true
	b, _ := startBridge(t, w)

	_, err := b.RequestAccounts(context.Background())
	var be *BridgeError
	if !errors.As(err, &be) {
		t.Fatalf("Expected BridgeError, got %v", err)
	}
	if be.Code != CodeUserRejected {
		t.Errorf("Expected code %d, got %d", CodeUserRejected, be.Code)
	}
	if ErrorMessage(err) != "User rejected the request." {
		t.Errorf("Unexpected message %q", ErrorMessage(err))
	}
}

func TestBridgeBacksContractCalls(t *testing.T) {
	w := newFakeWallet(t)
	b, _ := startBridge(t, w)
	ctx := context.Background()

	to := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	out, err := b.CallContract(ctx, ethereum.CallMsg{To: &to, Data: []byte{1, 2, 3, 4}}, nil)
	if err != nil {
		t.Fatalf("CallContract failed: %v", err)
	}
	if len(out) != 32 || out[31] != 0x2a {
		t.Errorf("Unexpected call result %x", out)
	}

	code, err := b.CodeAt(ctx, to, nil)
	if err != nil {
		t.Fatalf("CodeAt failed: %v", err)
	}
	if len(code) == 0 {
		t.Error("Expected code")
	}
}

func TestBridgeEvents(t *testing.T) {
	w := newFakeWallet(t)
	_, events := startBridge(t, w)

	w.push("accountsChanged", []string{"0xdef0000000000000000000000000000000000002"})
	ev := waitEvent(t, events)
	if ev.Kind != EventAccountsChanged || len(ev.Accounts) != 1 {
		t.Fatalf("Unexpected event %+v", ev)
	}

	w.push("accountsChanged", []string{})
	ev = waitEvent(t, events)
	if ev.Kind != EventAccountsChanged || len(ev.Accounts) != 0 {
		t.Fatalf("Expected empty accountsChanged, got %+v", ev)
	}

	w.push("chainChanged", "0x5")
	ev = waitEvent(t, events)
	if ev.Kind != EventChainChanged || ev.ChainID != 5 {
		t.Fatalf("Unexpected event %+v", ev)
	}
}

func TestBridgeDisconnect(t *testing.T) {
	w := newFakeWallet(t)
	b, events := startBridge(t, w)

	w.drop()
	ev := waitEvent(t, events)
	if ev.Kind != EventDisconnected {
		t.Fatalf("Expected disconnected, got %v", ev.Kind)
	}
	if b.Alive() {
		t.Error("Bridge should not be alive after disconnect")
	}
	if _, err := b.Accounts(context.Background()); !errors.Is(err, ErrBridgeClosed) {
		t.Errorf("Expected ErrBridgeClosed, got %v", err)
	}
}

func TestParseChainID(t *testing.T) {
	cases := map[string]uint64{
		`"0x1"`:      1,
		`"0xaa36a7"`: 11155111,
		`"5"`:        5,
		`31337`:      31337,
	}
	for in, want := range cases {
		got, err := parseChainID(json.RawMessage(in))
		if err != nil {
			t.Errorf("parseChainID(%s) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("parseChainID(%s) = %d, want %d", in, got, want)
		}
	}

	if _, err := parseChainID(json.RawMessage(`"0xzz"`)); err == nil {
		t.Error("Invalid hex should fail")
	}
}
