package remote

import (
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ironsheep/chipdetect-mcp/internal/detect"
	"github.com/ironsheep/chipdetect-mcp/internal/geometry"
)

func TestClient_Detect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method: got %s", r.Method)
		}
		if got := r.Header.Get("X-API-Key"); got != "secret" {
			t.Errorf("api key header: got %q", got)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			http.Error(w, "no file", http.StatusBadRequest)
			return
		}
		img, err := png.Decode(f)
		if err != nil {
			t.Errorf("chip is not a PNG: %v", err)
		}
		if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 32 {
			t.Errorf("chip size: got %v", img.Bounds())
		}

		json.NewEncoder(w).Encode(Response{Detections: []Detection{
			{ClassID: 2, Name: "car", Confidence: 0.91, XYXY: []float64{1, 2, 30, 20}},
			{ClassID: 5, Confidence: 0.4, XYXY: []float64{0, 0, 5, 5}},
		}})
	}))
	defer srv.Close()

	c := New(srv.URL, WithHeader("X-API-Key", "secret"))
	got, err := c.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 64, 32)))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	want := []detect.Raw{
		{ClassID: 2, Label: "car", Confidence: 0.91, Box: geometry.NewBox(1, 2, 30, 20)},
		{ClassID: 5, Confidence: 0.4, Box: geometry.NewBox(0, 0, 5, 5)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("detections mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantMsg string
	}{
		{
			"server error",
			func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not loaded", http.StatusServiceUnavailable)
			},
			"503",
		},
		{
			"bad json",
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("{not json"))
			},
			"decode response",
		},
		{
			"short box",
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"detections":[{"class_id":1,"confidence":0.5,"xyxy":[1,2,3]}]}`))
			},
			"want 4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := New(srv.URL).Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("got error %v, want one containing %q", err, tt.wantMsg)
			}
		})
	}
}

func TestClient_CheckHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	if err := New(srv.URL).CheckHealth(context.Background()); err != nil {
		t.Errorf("CheckHealth failed: %v", err)
	}
	if err := New(srv.URL + "/missing").CheckHealth(context.Background()); err == nil {
		t.Error("CheckHealth should fail on 404")
	}
}
