package xtts

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceclone-server-go/internal/domain/audio"
	"voiceclone-server-go/internal/platform/errors"
)

func wavBytes(t *testing.T) []byte {
	t.Helper()
	samples := make([]float64, 2205)
	for i := range samples {
		samples[i] = 0.3 * math.Sin(2*math.Pi*440*float64(i)/22050)
	}
	data, err := audio.EncodeWav(&audio.Clip{Samples: samples, SampleRate: 22050})
	require.NoError(t, err)
	return data
}

func TestClientSynthesizeSendsExpectedRequest(t *testing.T) {
	wav := wavBytes(t)

	var gotPath, gotContentType string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(wav)
	}))
	defer server.Close()

	client, err := New(server.URL)
	require.NoError(t, err)

	got, err := client.Synthesize(context.Background(), "hello there", "voices/alice/reference.wav", "en")
	require.NoError(t, err)

	assert.Equal(t, "/tts_to_audio/", gotPath)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, map[string]string{
		"text":        "hello there",
		"speaker_wav": "voices/alice/reference.wav",
		"language":    "en",
	}, gotBody)
	assert.Equal(t, wav, got)
}

func TestClientSynthesizeSurfacesEngineError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "RuntimeError: CUDA out of memory", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := New(server.URL)
	require.NoError(t, err)

	_, err = client.Synthesize(context.Background(), "hello", "ref.wav", "en")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "CUDA out of memory")
	assert.True(t, errors.IsKind(err, errors.KindEngine))
}

func TestClientSynthesizeRejectsNonWavBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"detail":"unexpected"}`))
	}))
	defer server.Close()

	client, err := New(server.URL)
	require.NoError(t, err)

	_, err = client.Synthesize(context.Background(), "hello", "ref.wav", "en")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a wav")
}

func TestClientSynthesizeValidatesInput(t *testing.T) {
	client, err := New("http://127.0.0.1:8020")
	require.NoError(t, err)

	_, err = client.Synthesize(context.Background(), "   ", "ref.wav", "en")
	assert.Error(t, err)

	_, err = client.Synthesize(context.Background(), "hello", "", "en")
	assert.Error(t, err)
}

func TestClientReadyProbe(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/studio_speakers", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Claribel Dervla":{}}`))
	}))
	defer healthy.Close()

	client, err := New(healthy.URL)
	require.NoError(t, err)
	assert.NoError(t, client.Ready(context.Background()))

	warming := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer warming.Close()

	client, err = New(warming.URL)
	require.NoError(t, err)
	assert.Error(t, client.Ready(context.Background()))
}

func TestClientReadyUnreachableEngine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // 立即关掉，模拟引擎离线

	client, err := New(server.URL, WithTimeout(time.Second))
	require.NoError(t, err)

	err = client.Ready(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindEngine))
}

func TestClientRequiresBaseURL(t *testing.T) {
	_, err := New("   ")
	assert.Error(t, err)

	client, err := New("http://127.0.0.1:8020/")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8020", client.BaseURL(), "尾部斜杠要剥掉")
}
