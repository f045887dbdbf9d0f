package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"accountops/internal/account"
	"accountops/internal/engine"
)

type call struct {
	method string
	path   string
	query  url.Values
	body   map[string]any
}

// fakeAPI 按路径返回预置响应；同一路径可排队多个响应，最后一个会被重复使用。
type fakeAPI struct {
	mu        sync.Mutex
	responses map[string][]string
	errs      map[string]error
	failOnce  map[string]error
	calls     []call
	now       int64
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		responses: make(map[string][]string),
		errs:      make(map[string]error),
		failOnce:  make(map[string]error),
		now:       1700000000000,
	}
}

// on 为路径追加响应，key 为 path 或 path?coin=XXX。
func (f *fakeAPI) on(key string, payloads ...string) *fakeAPI {
	f.responses[key] = append(f.responses[key], payloads...)
	return f
}

func (f *fakeAPI) fail(key string, err error) *fakeAPI {
	f.errs[key] = err
	return f
}

// failFirst 让路径的下一次调用返回 err，之后恢复正常响应。
func (f *fakeAPI) failFirst(key string, err error) *fakeAPI {
	f.failOnce[key] = err
	return f
}

func (f *fakeAPI) ServerTime(context.Context) (int64, error) { return f.now, nil }

func (f *fakeAPI) Get(_ context.Context, path string, query url.Values, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: "GET", path: path, query: query})
	return f.respond(path, query.Get("coin"), out)
}

func (f *fakeAPI) Post(_ context.Context, path string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: "POST", path: path, body: decoded})
	coin, _ := decoded["coin"].(string)
	return f.respond(path, coin, out)
}

func (f *fakeAPI) respond(path, coin string, out any) error {
	keys := []string{path}
	if coin != "" {
		keys = []string{path + "?coin=" + coin, path}
	}
	for _, key := range keys {
		if err, ok := f.failOnce[key]; ok {
			delete(f.failOnce, key)
			return err
		}
		if err, ok := f.errs[key]; ok {
			return err
		}
		queue, ok := f.responses[key]
		if !ok {
			continue
		}
		payload := queue[0]
		if len(queue) > 1 {
			f.responses[key] = queue[1:]
		}
		if out == nil {
			return nil
		}
		return json.Unmarshal([]byte(payload), out)
	}
	return fmt.Errorf("fakeAPI: 未预置 %s", path)
}

func (f *fakeAPI) posts(path string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.method == "POST" && c.path == path {
			out = append(out, c)
		}
	}
	return out
}

// fakeConn 让 fakeAPI 满足 engine.Conn，供任务级测试使用。
type fakeConn struct {
	*fakeAPI
}

func (fakeConn) Close() error { return nil }

func dialerFor(api *fakeAPI) engine.Dialer {
	return engine.DialerFunc(func(account.Account, *zap.Logger) (engine.Conn, error) {
		return fakeConn{api}, nil
	})
}

func session(api *fakeAPI, acct account.Account) engine.Session {
	if acct.ID == "" {
		acct.ID = "acc-1"
	}
	return engine.Session{Account: acct, Client: api, Logger: zap.NewNop()}
}

func balanceJSON(amount string) string {
	return fmt.Sprintf(`{"accountType":"UNIFIED","balance":{"coin":"X","walletBalance":%q}}`, amount)
}

func noSleep(context.Context, time.Duration) error { return nil }
