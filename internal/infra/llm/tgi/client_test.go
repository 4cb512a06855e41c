package tgi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "object response", body: `{"generated_text":" It works.\n"}`, want: " It works.\n"},
		{name: "array response", body: `[{"generated_text":"From the hub."}]`, want: "From the hub."},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var (
				got  GenerateRequest
				path string
				auth string
			)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				path = r.URL.Path
				auth = r.Header.Get("Authorization")
				_ = json.NewDecoder(r.Body).Decode(&got)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client, err := NewClient("hf_token", srv.URL+"/", time.Second)
			require.NoError(t, err)
			resp, err := client.Generate(context.Background(), GenerateRequest{
				Inputs: "prompt",
				Parameters: Parameters{
					DoSample:     true,
					TopK:         10,
					Temperature:  0.001,
					MaxNewTokens: 512,
				},
			})
			require.NoError(t, err)
			require.Equal(t, tt.want, resp.GeneratedText)
			require.Equal(t, "/generate", path)
			require.Equal(t, "Bearer hf_token", auth)
			require.Equal(t, "prompt", got.Inputs)
			require.True(t, got.Parameters.DoSample)
			require.Equal(t, 10, got.Parameters.TopK)
			require.Equal(t, 512, got.Parameters.MaxNewTokens)
			require.False(t, got.Parameters.ReturnFullText)
		})
	}
}

func TestGenerateRequestEncoding(t *testing.T) {
	t.Parallel()
	payload, err := json.Marshal(GenerateRequest{Inputs: "x", Parameters: Parameters{DoSample: false}})
	require.NoError(t, err)
	require.JSONEq(t, `{"inputs":"x","parameters":{"do_sample":false,"return_full_text":false}}`, string(payload))
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "structured error", status: http.StatusUnprocessableEntity, body: `{"error":"Input validation error","error_type":"validation"}`, wantErr: "type=validation error=Input validation error"},
		{name: "plain error", status: http.StatusBadGateway, body: `upstream down`, wantErr: "status=502 body=upstream down"},
		{name: "empty array", status: http.StatusOK, body: `[]`, wantErr: "tgi returned no generations"},
		{name: "malformed", status: http.StatusOK, body: `{"generated_text":`, wantErr: "decode generate response"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client, err := NewClient("", srv.URL, time.Second)
			require.NoError(t, err)
			_, err = client.Generate(context.Background(), GenerateRequest{Inputs: "p"})
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewClient(t *testing.T) {
	t.Parallel()
	_, err := NewClient("", "  ", time.Second)
	require.Error(t, err)

	client, err := NewClient("", "http://localhost:8080/generate", 0)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/generate", client.endpoint)
	require.Equal(t, 120*time.Second, client.httpClient.Timeout)
}
