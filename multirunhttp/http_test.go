package multirunhttp

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/BertoldVdb/go-serialline/logrusconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeAndClose(t *testing.T) {
	s := &MultiRunHTTP{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "pong")
		}),
		Listen:     "127.0.0.1:0",
		LoggerHTTP: logrusconfig.Discard(),
	}

	result := make(chan (error), 1)
	go func() { result <- s.Run() }()

	deadline := time.Now().Add(2 * time.Second)
	for s.Addr() == nil {
		require.True(t, time.Now().Before(deadline), "server did not start")
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Get("http://" + s.Addr().String() + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "pong", string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	require.NoError(t, s.Close())
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestCloseBeforeRun(t *testing.T) {
	s := &MultiRunHTTP{Handler: http.NotFoundHandler(), Listen: "127.0.0.1:0"}

	require.NoError(t, s.Close())
	assert.NoError(t, s.Run())
}

func TestListenError(t *testing.T) {
	s := &MultiRunHTTP{Handler: http.NotFoundHandler(), Listen: "not an address"}
	assert.Error(t, s.Run())
}
