package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func TestServerExposesMetrics(t *testing.T) {
	gauge := promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "metrics_test",
		Name:      "served_gauge",
		Help:      "Gauge registered by the metrics server test",
	})
	gauge.Set(42)

	server, err := Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Start: %+v", err)
	}
	defer server.Stop(context.Background())

	response, err := http.Get("http://" + server.Addr().String() + Path)
	if err != nil {
		t.Fatalf("Get: %s", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %s", response.Status)
	}
	body, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatalf("ReadAll: %s", err)
	}
	if !strings.Contains(string(body), "metrics_test_served_gauge 42") {
		t.Fatalf("served metrics do not contain the test gauge:\n%s", body)
	}
}
