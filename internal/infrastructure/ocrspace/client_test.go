package ocrspace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelscan/backend/internal/domain"
)

func TestRecognize_Success(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"apikey":    q.Get("apikey"),
			"url":       q.Get("url"),
			"scale":     q.Get("scale"),
			"OCREngine": q.Get("OCREngine"),
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ParsedResults": []map[string]any{
				{"ParsedText": "Supplement Facts\nServing Size 2 Capsules"},
			},
			"IsErroredOnProcessing": false,
		})
	}))
	defer server.Close()

	client := NewClient("ocr-key", server.URL, 5*time.Second, zerolog.Nop())
	text, err := client.Recognize(context.Background(), "https://cdn.example.com/label.jpg")

	require.NoError(t, err)
	assert.Equal(t, "Supplement Facts\nServing Size 2 Capsules", text)
	assert.Equal(t, "ocr-key", gotQuery["apikey"])
	assert.Equal(t, "https://cdn.example.com/label.jpg", gotQuery["url"])
	assert.Equal(t, "true", gotQuery["scale"])
	assert.Equal(t, "2", gotQuery["OCREngine"])
}

func TestRecognize_JoinsMultipleResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ParsedResults": []map[string]any{
				{"ParsedText": "first page"},
				{"ParsedText": "  "},
				{"ParsedText": "second page"},
			},
		})
	}))
	defer server.Close()

	client := NewClient("ocr-key", server.URL, 5*time.Second, zerolog.Nop())
	text, err := client.Recognize(context.Background(), "https://cdn.example.com/label.jpg")

	require.NoError(t, err)
	assert.Equal(t, "first page\nsecond page", text)
}

func TestRecognize_ProcessingErrorWrapsOCRFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ParsedResults":         []map[string]any{},
			"IsErroredOnProcessing": true,
			"ErrorMessage":          []string{"image url unreachable"},
		})
	}))
	defer server.Close()

	client := NewClient("ocr-key", server.URL, 5*time.Second, zerolog.Nop())
	text, err := client.Recognize(context.Background(), "https://cdn.example.com/label.jpg")

	assert.Empty(t, text)
	assert.ErrorIs(t, err, domain.ErrOCRFailed)
}

func TestRecognize_RetriesOnServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ParsedResults": []map[string]any{{"ParsedText": "recovered"}},
		})
	}))
	defer server.Close()

	client := NewClient("ocr-key", server.URL, 5*time.Second, zerolog.Nop())
	text, err := client.Recognize(context.Background(), "https://cdn.example.com/label.jpg")

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "recovered", text)
}

func TestRecognize_EmptyParsedTextIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ParsedResults": []map[string]any{{"ParsedText": ""}},
		})
	}))
	defer server.Close()

	client := NewClient("ocr-key", server.URL, 5*time.Second, zerolog.Nop())
	_, err := client.Recognize(context.Background(), "https://cdn.example.com/label.jpg")

	assert.ErrorIs(t, err, domain.ErrOCRFailed)
}
