package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/sksmith/allocation-service/api"
	"github.com/sksmith/allocation-service/config"
	"github.com/sksmith/allocation-service/testutil"
)

func TestGetEnvironment(t *testing.T) {
	cfg := config.LoadDefaults()
	cfg.Db.Pass = "supersecret"
	cfg.RabbitMQ.Pass = "guestsecret"
	envApi := api.NewEnvApi(cfg)
	r := chi.NewRouter()
	envApi.ConfigureRouter(r)

	ts := httptest.NewServer(r)
	defer ts.Close()

	res, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}

	got := &config.Config{}
	testutil.Unmarshal(res, got, t)

	if got.AppName != cfg.AppName {
		t.Errorf("unexpected app name got=[%v] want=[%v]", got.AppName, cfg.AppName)
	}
	if got.Db.Pass != "******" || got.RabbitMQ.Pass != "******" {
		t.Errorf("passwords were not scrubbed got=[%s %s]", got.Db.Pass, got.RabbitMQ.Pass)
	}
	if cfg.Db.Pass != "supersecret" {
		t.Errorf("scrubbing changed the running config")
	}
}
