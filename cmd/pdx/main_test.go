package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matsen/paperdex/internal/config"
	"github.com/matsen/paperdex/internal/embedding"
	"github.com/matsen/paperdex/internal/generate"
)

// newTagsServer serves /api/tags listing the given installed models.
func newTagsServer(t *testing.T, installed ...string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		type model struct {
			Name string `json:"name"`
		}
		resp := struct {
			Models []model `json:"models"`
		}{}
		for _, name := range installed {
			resp.Models = append(resp.Models, model{Name: name})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testLibrary(url string) *library {
	cfg := config.Default()
	cfg.OllamaURL = url
	return &library{
		cfg: cfg,
		provider: embedding.NewOllamaProvider(
			embedding.WithBaseURL(url),
			embedding.WithModel("nomic-embed-text"),
		),
		generator: generate.NewOllamaGenerator(
			generate.WithBaseURL(url),
			generate.WithModel("llama3.1:8b"),
		),
	}
}

func TestValidateOllama_UsesRequestedGenerationModel(t *testing.T) {
	// The configured default llama3.1:8b is not installed.
	srv := newTagsServer(t, "nomic-embed-text:latest", "mistral:latest")
	lib := testLibrary(srv.URL)

	if err := validateOllama(context.Background(), lib, "mistral"); err != nil {
		t.Errorf("validateOllama(mistral) error = %v, want nil", err)
	}

	err := validateOllama(context.Background(), lib, lib.generator.Model())
	var verr *validationError
	if !errors.As(err, &verr) {
		t.Fatalf("validateOllama(default) error = %v, want validationError", err)
	}
	if verr.code != ExitConfigError {
		t.Errorf("code = %d, want %d", verr.code, ExitConfigError)
	}
	if !strings.Contains(verr.msg, "llama3.1:8b") {
		t.Errorf("msg = %q, want it to name the missing model", verr.msg)
	}
}

func TestValidateOllama_MissingRequestedModel(t *testing.T) {
	// The default is installed but the requested model is not.
	srv := newTagsServer(t, "nomic-embed-text:latest", "llama3.1:8b")
	lib := testLibrary(srv.URL)

	err := validateOllama(context.Background(), lib, "mistral")
	var verr *validationError
	if !errors.As(err, &verr) {
		t.Fatalf("validateOllama(mistral) error = %v, want validationError", err)
	}
	if !strings.Contains(verr.msg, `"mistral"`) {
		t.Errorf("msg = %q, want it to name mistral", verr.msg)
	}
}

func TestValidateOllama_SkipsGenerationCheckWhenNoModel(t *testing.T) {
	srv := newTagsServer(t, "nomic-embed-text:latest")
	lib := testLibrary(srv.URL)

	if err := validateOllama(context.Background(), lib, ""); err != nil {
		t.Errorf("validateOllama() error = %v, want nil", err)
	}
}

func TestValidateOllama_MissingEmbeddingModel(t *testing.T) {
	srv := newTagsServer(t, "llama3.1:8b")
	lib := testLibrary(srv.URL)

	err := validateOllama(context.Background(), lib, "llama3.1:8b")
	var verr *validationError
	if !errors.As(err, &verr) || verr.code != ExitConfigError {
		t.Fatalf("validateOllama() error = %v, want config error", err)
	}
	if !strings.Contains(verr.msg, "nomic-embed-text") {
		t.Errorf("msg = %q, want it to name the embedding model", verr.msg)
	}
}

func TestValidateOllama_Unreachable(t *testing.T) {
	srv := newTagsServer(t)
	url := srv.URL
	srv.Close()

	err := validateOllama(context.Background(), testLibrary(url), "")
	var verr *validationError
	if !errors.As(err, &verr) || verr.code != ExitDataError {
		t.Fatalf("validateOllama() error = %v, want data error", err)
	}
}
