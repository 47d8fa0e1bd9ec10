package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gobwas/ws/wsutil"
)

// Unmarshal decodes a response body into v and closes it.
func Unmarshal(res *http.Response, v interface{}, t *testing.T) {
	t.Helper()
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	err = json.Unmarshal(body, v)
	if err != nil {
		t.Fatal(err)
	}
}

func Put(url string, request interface{}, t *testing.T) *http.Response {
	return SendRequest(http.MethodPut, url, request, t)
}

func Post(url string, request interface{}, t *testing.T) *http.Response {
	return SendRequest(http.MethodPost, url, request, t)
}

func Delete(url string, t *testing.T) *http.Response {
	return SendRequest(http.MethodDelete, url, nil, t)
}

// SendRequest sends request as a json body. A nil request sends no body.
func SendRequest(method, url string, request interface{}, t *testing.T) *http.Response {
	t.Helper()
	var body io.Reader
	if request != nil {
		b, err := json.Marshal(request)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewBuffer(b)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatal(err)
	}

	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}

	return res
}

const wsReadTimeout = 2 * time.Second

// ReadWs decodes the next server frame into v, failing the test if nothing
// arrives in time.
func ReadWs(conn net.Conn, v interface{}, t *testing.T) {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
		t.Fatal(err)
	}
	defer conn.SetReadDeadline(time.Time{})

	msg, _, err := wsutil.ReadServerData(conn)
	if err != nil {
		t.Fatal(err)
	}
	if err = json.Unmarshal(msg, v); err != nil {
		t.Fatal(err)
	}
}

// WaitFor polls cond until it holds or two seconds pass.
func WaitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
