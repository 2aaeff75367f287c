package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blue-creative/db-rb/internal/models"
	"github.com/blue-creative/db-rb/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Empty Options", func(t *testing.T) {
			srv := NewAPIService(APIOpts{})

			if srv.baseURL != "http://localhost:8080" {
				t.Errorf("expected default baseURL 'http://localhost:8080', got %s", srv.baseURL)
			}
			if srv.pageSize != 50 {
				t.Errorf("expected default page size 50, got %d", srv.pageSize)
			}
			if srv.Name() != "localhost:8080" {
				t.Errorf("expected name 'localhost:8080', got %s", srv.Name())
			}
		})

		t.Run("From Config", func(t *testing.T) {
			cfg := shared.DefaultConfig().Source
			srv := FromConfig(cfg, func(key string) string {
				if key == "DBRB_SOURCE_TOKEN" {
					return "secret"
				}
				return ""
			})

			if srv.token != "secret" {
				t.Errorf("expected token from environment, got %q", srv.token)
			}
		})
	})

	t.Run("Entries", func(t *testing.T) {
		t.Run("Follows Pages", func(t *testing.T) {
			var server *httptest.Server
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/playlists/pl1/tracks", r.URL.Path)
				assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

				w.Header().Set("Content-Type", "application/json")
				switch r.URL.Query().Get("offset") {
				case "0":
					fmt.Fprintf(w, `{"items":[
						{"added_at":"2024-01-02T00:00:00Z","track":{"name":"Strobe","artists":[{"name":"deadmau5"}],"duration_ms":637000,"uri":"spotify:track:1"}},
						"oops"
					],"next":"%s/playlists/pl1/tracks?limit=2&offset=2"}`, server.URL)
				case "2":
					fmt.Fprint(w, `{"items":[{"track":{"name":"Ghosts n Stuff","artists":[{"name":"deadmau5"}]}}],"next":null}`)
				default:
					t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
				}
			}))
			defer server.Close()

			srv := NewAPIService(APIOpts{BaseURL: server.URL, Token: "secret", PageSize: 2})
			res, err := srv.Entries(context.Background(), "pl1")
			require.NoError(t, err)

			require.Len(t, res.Records, 2)
			assert.Equal(t, "Strobe", res.Records[0].Get(models.FieldTitle))
			assert.Equal(t, "637", res.Records[0].Get(models.FieldDuration))
			assert.Equal(t, "spotify:track:1", res.Records[0].Get(models.FieldExternalRef))
			assert.Equal(t, 1, res.Records[0].Line)

			assert.Equal(t, "Ghosts n Stuff", res.Records[1].Get(models.FieldTitle))
			assert.Equal(t, 3, res.Records[1].Line)
		})

		t.Run("Bare Array", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `[{"title":"Strobe","artist":"deadmau5"}]`)
			}))
			defer server.Close()

			res, err := NewAPIService(APIOpts{BaseURL: server.URL}).Entries(context.Background(), "pl1")
			require.NoError(t, err)
			assert.Len(t, res.Records, 1)
		})

		t.Run("Errors", func(t *testing.T) {
			tests := []struct {
				name   string
				status int
				body   string
				want   error
			}{
				{"not found", http.StatusNotFound, `{}`, shared.ErrPlaylistNotFound},
				{"server error", http.StatusBadGateway, `{}`, shared.ErrAPIRequest},
				{"unauthorized", http.StatusUnauthorized, `{}`, shared.ErrAPIRequest},
				{"not a listing", http.StatusOK, `{"foo":1}`, shared.ErrMalformedDocument},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
						w.WriteHeader(tt.status)
						fmt.Fprint(w, tt.body)
					}))
					defer server.Close()

					_, err := NewAPIService(APIOpts{BaseURL: server.URL}).Entries(context.Background(), "pl1")
					assert.ErrorIs(t, err, tt.want)
				})
			}
		})

		t.Run("Missing Playlist ID", func(t *testing.T) {
			_, err := NewAPIService(APIOpts{}).Entries(context.Background(), " ")
			assert.ErrorIs(t, err, shared.ErrMissingArgument)
		})

		t.Run("Cancelled Context", func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := NewAPIService(APIOpts{BaseURL: "http://127.0.0.1:1"}).Entries(ctx, "pl1")
			assert.Error(t, err)
		})
	})
}
