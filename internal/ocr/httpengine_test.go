package ocr

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"
)

func solidImage() image.Image {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetGray(x, y, color.Gray{Y: 128})
		}
	}
	return img
}

func TestHTTPEngineInitializeRequiresEndpoint(t *testing.T) {
	e := NewHTTPEngine("")
	if err := e.Initialize(context.Background(), "eng"); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}

func TestHTTPEngineRecognizeRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("language") != "eng" {
			t.Errorf("language query param = %q, want eng", r.URL.Query().Get("language"))
		}
		if ct := r.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("content-type = %q, want image/png", ct)
		}
		resp := recognizeResponse{
			Text:       "hello",
			Confidence: 0.9,
			Regions: []regionWire{
				{X1: 0, Y1: 0, X2: 10, Y2: 10, Text: "hello", Confidence: 0.9},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewHTTPEngine(srv.URL)
	if err := e.Initialize(context.Background(), "eng"); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	result, err := e.Recognize(context.Background(), solidImage())
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if result.Text != "hello" || result.Confidence != 0.9 {
		t.Errorf("Recognize() = %+v, want text=hello confidence=0.9", result)
	}
	if len(result.Regions) != 1 || result.Regions[0].X2 != 10 {
		t.Errorf("Recognize() regions = %+v", result.Regions)
	}
}

func TestHTTPEngineRecognizeNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewHTTPEngine(srv.URL)
	_ = e.Initialize(context.Background(), "eng")
	if _, err := e.Recognize(context.Background(), solidImage()); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestHTTPEngineTerminateIsNoop(t *testing.T) {
	e := NewHTTPEngine("http://example.invalid")
	if err := e.Terminate(); err != nil {
		t.Errorf("Terminate() error = %v, want nil", err)
	}
}
