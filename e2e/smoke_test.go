//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/go-resty/resty/v2"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"tempmon-server/internal/auth"
	"tempmon-server/internal/config"
	"tempmon-server/internal/mqtt"
)

const repoRootRel = ".."   // relative to ./e2e
const mainPkgRel = "./cmd" // main.go lives in cmd/

const (
	deviceKey     = "e2e-device-key"
	sessionSecret = "e2e-session-secret"
)

type reading struct {
	DeviceID    string    `json:"deviceId"`
	Temperature int       `json:"temperature"`
	Humidity    int       `json:"humidity"`
	Timestamp   time.Time `json:"timestamp"`
}

func TestSmoke(t *testing.T) {
	repoRoot := repoRootPath(t)
	broker := startMosquitto(t)

	bin := buildBinary(t, repoRoot)
	addr := pickFreeAddr(t)

	cmd := exec.Command(bin)
	cmd.Env = append(os.Environ(),
		"APP_ENV=dev",
		"LOG_LEVEL=info",
		"HTTP_ADDR="+addr,
		"DB_DRIVER=sqlite3",
		"SQLITE_PATH="+filepath.Join(t.TempDir(), "tempmon.db"),
		"DEVICE_API_KEY="+deviceKey,
		"SESSION_JWT_SECRET="+sessionSecret,
		"MQTT_ENABLED=true",
		"MQTT_BROKER="+broker.host,
		"MQTT_PORT="+broker.port.Port(),
		"MQTT_TOPIC=tempmon/readings/+",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})

	base := "http://" + addr
	client := resty.New().SetBaseURL(base).SetTimeout(2 * time.Second)

	waitForOK(t, client, "/healthz", 10*time.Second)

	token, err := auth.IssueSessionToken(auth.User{ID: "e2e-user"}, sessionSecret, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	t.Run("ingest over http", func(t *testing.T) {
		resp, err := client.R().
			SetHeader(auth.DefaultDeviceHeader, deviceKey).
			SetBody(map[string]any{"deviceId": "http-sensor", "temperature": 21.4, "humidity": 40}).
			Post("/api/v1/readings")
		if err != nil {
			t.Fatalf("POST /api/v1/readings: %v", err)
		}
		if resp.StatusCode() != http.StatusCreated {
			t.Fatalf("status=%d body=%s", resp.StatusCode(), resp.String())
		}

		resp, err = client.R().
			SetBody(map[string]any{"deviceId": "http-sensor", "temperature": 21, "humidity": 40}).
			Post("/api/v1/readings")
		if err != nil {
			t.Fatalf("POST without key: %v", err)
		}
		if resp.StatusCode() != http.StatusUnauthorized {
			t.Fatalf("status without key=%d want=%d", resp.StatusCode(), http.StatusUnauthorized)
		}
	})

	t.Run("ingest over mqtt", func(t *testing.T) {
		temperature, humidity := 19.6, 55.0
		publishReading(t, broker, mqtt.ReadingMessage{
			DeviceID:    "mqtt-sensor",
			Temperature: &temperature,
			Humidity:    &humidity,
			APIKey:      deviceKey,
		})

		deadline := time.Now().Add(10 * time.Second)
		for time.Now().Before(deadline) {
			var got []reading
			resp, err := client.R().
				SetAuthToken(token).
				SetQueryParam("deviceId", "mqtt-sensor").
				SetResult(&got).
				Get("/api/v1/readings")
			if err == nil && resp.StatusCode() == http.StatusOK && len(got) == 1 {
				if got[0].Temperature != 20 || got[0].Humidity != 55 {
					t.Fatalf("mqtt reading = %+v", got[0])
				}
				return
			}
			time.Sleep(200 * time.Millisecond)
		}
		t.Fatal("mqtt reading never showed up")
	})

	t.Run("read back", func(t *testing.T) {
		resp, err := client.R().Get("/api/v1/readings/latest")
		if err != nil {
			t.Fatalf("GET latest without session: %v", err)
		}
		if resp.StatusCode() != http.StatusUnauthorized {
			t.Fatalf("status=%d want=%d", resp.StatusCode(), http.StatusUnauthorized)
		}

		var latest []reading
		resp, err = client.R().SetAuthToken(token).SetResult(&latest).Get("/api/v1/readings/latest")
		if err != nil {
			t.Fatalf("GET latest: %v", err)
		}
		if resp.StatusCode() != http.StatusOK {
			t.Fatalf("status=%d body=%s", resp.StatusCode(), resp.String())
		}
		if len(latest) != 2 {
			t.Fatalf("latest=%d readings, want 2", len(latest))
		}

		var devices []map[string]any
		resp, err = client.R().SetAuthToken(token).SetResult(&devices).Get("/api/v1/devices")
		if err != nil {
			t.Fatalf("GET devices: %v", err)
		}
		if resp.StatusCode() != http.StatusOK || len(devices) != 2 {
			t.Fatalf("devices status=%d body=%s", resp.StatusCode(), resp.String())
		}

		resp, err = client.R().SetAuthToken(token).Get("/api/v1/readings/export.csv")
		if err != nil {
			t.Fatalf("GET export: %v", err)
		}
		if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
			t.Fatalf("export content type=%q", ct)
		}
	})

	stopServer(t, cmd)
}

type brokerAddr struct {
	host string
	port nat.Port
}

// startMosquitto returns the host-mapped broker address.
func startMosquitto(t *testing.T) brokerAddr {
	t.Helper()

	ctx := context.Background()
	port := nat.Port("1883/tcp")

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "eclipse-mosquitto:1.6",
			ExposedPorts: []string{string(port)},
			WaitingFor:   wait.ForListeningPort(port).WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start mosquitto container: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Terminate(ctx)
	})

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return brokerAddr{host: host, port: mapped}
}

func publishReading(t *testing.T, broker brokerAddr, msg mqtt.ReadingMessage) {
	t.Helper()

	port, err := strconv.Atoi(broker.port.Port())
	if err != nil {
		t.Fatalf("broker port: %v", err)
	}
	cfg := config.Config{
		MQTTBroker:   broker.host,
		MQTTPort:     port,
		MQTTClientID: "tempmon-e2e",
		MQTTTopic:    "tempmon/readings/+",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p := mqtt.NewPublisher(cfg, slog.Default())
	if err := p.Connect(ctx); err != nil {
		t.Fatalf("publisher connect: %v", err)
	}
	defer p.Disconnect()

	// Retained, so a subscriber that is still connecting gets it on subscribe.
	if err := p.PublishReading(msg, true); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func repoRootPath(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	repo := filepath.Clean(filepath.Join(wd, repoRootRel))
	if _, err := os.Stat(filepath.Join(repo, "go.mod")); err != nil {
		t.Fatalf("repo root %q does not contain go.mod: %v", repo, err)
	}

	return repo
}

func buildBinary(t *testing.T, repoRoot string) string {
	t.Helper()

	out := filepath.Join(t.TempDir(), "tempmon-server")

	build := exec.Command("go", "build", "-o", out, mainPkgRel)
	build.Dir = repoRoot
	build.Env = os.Environ()

	b, err := build.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(b))
	}

	return out
}

func pickFreeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen :0: %v", err)
	}
	defer ln.Close()

	return ln.Addr().String()
}

func waitForOK(t *testing.T, client *resty.Client, path string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.R().Get(path)
		if err == nil && resp.StatusCode() == http.StatusOK {
			var body map[string]string
			if json.Unmarshal(resp.Body(), &body) == nil && body["status"] == "ok" {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server not healthy after %s: %s", timeout, path)
}

func stopServer(t *testing.T, cmd *exec.Cmd) {
	t.Helper()

	_ = cmd.Process.Signal(syscall.SIGTERM)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		t.Fatalf("server did not exit in time")
	case err := <-done:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				t.Fatalf("server exited non-zero: %v", err)
			}
			t.Fatalf("server wait error: %v", err)
		}
	}
}
