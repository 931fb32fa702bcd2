package services

import (
  "bytes"
  "context"
  "encoding/base64"
  "encoding/json"
  "errors"
  "fmt"
  "io"
  "math/rand"
  "net"
  "net/http"
  "os"
  "strconv"
  "strings"
  "time"

  "github.com/edulens/edulens-backend/internal/logger"
)

// ErrMissingCredential is returned by every call when OPENAI_API_KEY is not
// set. It is non-retryable and lets the orchestrator fail jobs with a
// configuration-specific message instead of crashing at startup.
var ErrMissingCredential = errors.New("missing OPENAI_API_KEY")

type OpenAIClient interface {
  // Configured reports whether a credential is present.
  Configured() bool
  // GenerateText runs a plain text completion.
  GenerateText(ctx context.Context, system string, user string) (string, error)
  // TranscribeFile sends the media file alongside a fixed instruction in a
  // single multimodal request and returns the transcript text.
  TranscribeFile(ctx context.Context, instruction string, fileName string, data []byte, mimeType string) (string, error)
}

type openAIClient struct {
  log        *logger.Logger
  baseURL    string
  apiKey     string
  model      string
  httpClient *http.Client

  maxRetries int
}

func NewOpenAIClient(log *logger.Logger) OpenAIClient {
  apiKey := os.Getenv("OPENAI_API_KEY")

  baseURL := os.Getenv("OPENAI_BASE_URL")
  if baseURL == "" {
    baseURL = "https://api.openai.com"
  }

  model := os.Getenv("OPENAI_MODEL")
  if model == "" {
    model = "gpt-5.2"
  }

  timeoutSec := 180
  if v := os.Getenv("OPENAI_TIMEOUT_SECONDS"); v != "" {
    if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
      timeoutSec = parsed
    }
  }

  maxRetries := 2
  if v := os.Getenv("OPENAI_MAX_RETRIES"); v != "" {
    if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
      maxRetries = parsed
    }
  }

  return &openAIClient{
    log:        log.With("service", "OpenAIClient"),
    baseURL:    baseURL,
    apiKey:     apiKey,
    model:      model,
    httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
    maxRetries: maxRetries,
  }
}

func (c *openAIClient) Configured() bool {
  return c.apiKey != ""
}

type openAIHTTPError struct {
  StatusCode int
  Body       string
}

func (e *openAIHTTPError) Error() string {
  return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func isRetryableHTTP(code int) bool {
  if code == 408 || code == 429 {
    return true
  }
  if code >= 500 && code <= 599 {
    return true
  }
  return false
}

func isRetryableErr(err error) bool {
  if err == nil {
    return false
  }
  if errors.Is(err, ErrMissingCredential) {
    return false
  }
  if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
    return true
  }
  var netErr net.Error
  if errors.As(err, &netErr) {
    if netErr.Timeout() || netErr.Temporary() {
      return true
    }
  }
  var httpErr *openAIHTTPError
  if errors.As(err, &httpErr) {
    return isRetryableHTTP(httpErr.StatusCode)
  }
  return false
}

func jitterSleep(base time.Duration) time.Duration {
  // +/- 20%
  if base <= 0 {
    return 0
  }
  j := 0.2
  delta := base.Seconds() * j
  low := base.Seconds() - delta
  high := base.Seconds() + delta
  if low < 0 {
    low = 0
  }
  v := low + rand.Float64()*(high-low)
  return time.Duration(v * float64(time.Second))
}

func (c *openAIClient) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
  var buf bytes.Buffer
  if body != nil {
    if err := json.NewEncoder(&buf).Encode(body); err != nil {
      return nil, nil, err
    }
  }

  req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
  if err != nil {
    return nil, nil, err
  }
  req.Header.Set("Authorization", "Bearer "+c.apiKey)
  req.Header.Set("Content-Type", "application/json")

  resp, err := c.httpClient.Do(req)
  if err != nil {
    return nil, nil, err
  }

  raw, readErr := io.ReadAll(resp.Body)
  _ = resp.Body.Close()
  if readErr != nil {
    return resp, nil, readErr
  }

  if resp.StatusCode < 200 || resp.StatusCode >= 300 {
    return resp, raw, &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
  }
  return resp, raw, nil
}

func (c *openAIClient) do(ctx context.Context, method, path string, body any, out any) error {
  if !c.Configured() {
    return ErrMissingCredential
  }

  // exponential backoff: 1s, 2s, 4s (cap ~10s)
  backoff := 1 * time.Second

  for attempt := 0; attempt <= c.maxRetries; attempt++ {
    if ctx.Err() != nil {
      return ctx.Err()
    }

    resp, raw, err := c.doOnce(ctx, method, path, body)
    if err == nil {
      if out == nil {
        return nil
      }
      if uErr := json.Unmarshal(raw, out); uErr != nil {
        return fmt.Errorf("openai decode error: %w; raw=%s", uErr, string(raw))
      }
      return nil
    }

    if !isRetryableErr(err) {
      return err
    }
    if attempt == c.maxRetries {
      return err
    }

    // Respect Retry-After when present
    sleepFor := backoff
    if resp != nil {
      ra := strings.TrimSpace(resp.Header.Get("Retry-After"))
      if ra != "" {
        if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs > 0 {
          sleepFor = time.Duration(secs) * time.Second
        }
      }
    }

    if sleepFor > 10*time.Second {
      sleepFor = 10 * time.Second
    }
    sleepFor = jitterSleep(sleepFor)

    c.log.Warn("OpenAI request retrying",
      "path", path,
      "attempt", attempt+1,
      "max_retries", c.maxRetries,
      "sleep", sleepFor.String(),
      "error", err.Error(),
    )

    time.Sleep(sleepFor)
    backoff *= 2
  }

  return fmt.Errorf("unreachable retry loop")
}

// ---- Responses API ----

type responsesContentPart struct {
  Type     string `json:"type"`
  Text     string `json:"text,omitempty"`
  Filename string `json:"filename,omitempty"`
  FileData string `json:"file_data,omitempty"`
}

type responsesMessage struct {
  Role    string                 `json:"role"`
  Content []responsesContentPart `json:"content"`
}

type responsesRequest struct {
  Model       string             `json:"model"`
  Input       []responsesMessage `json:"input"`
  Temperature float64            `json:"temperature,omitempty"`
}

type responsesResponse struct {
  Output []struct {
    Type    string `json:"type"`
    Role    string `json:"role,omitempty"`
    Content []struct {
      Type string `json:"type"`
      Text string `json:"text,omitempty"`
    } `json:"content,omitempty"`
  } `json:"output"`
  Refusal string `json:"refusal,omitempty"`
}

func collectOutputText(resp *responsesResponse) string {
  var text string
  for _, item := range resp.Output {
    if item.Type == "message" && item.Role == "assistant" {
      for _, part := range item.Content {
        if part.Type == "output_text" && part.Text != "" {
          text += part.Text
        }
      }
    }
  }
  return text
}

func (c *openAIClient) GenerateText(ctx context.Context, system string, user string) (string, error) {
  req := responsesRequest{
    Model: c.model,
    Input: []responsesMessage{
      {Role: "system", Content: []responsesContentPart{{Type: "input_text", Text: system}}},
      {Role: "user", Content: []responsesContentPart{{Type: "input_text", Text: user}}},
    },
    Temperature: 0.3,
  }

  var resp responsesResponse
  if err := c.do(ctx, "POST", "/v1/responses", req, &resp); err != nil {
    return "", err
  }
  if resp.Refusal != "" {
    return "", fmt.Errorf("model refused: %s", resp.Refusal)
  }

  text := collectOutputText(&resp)
  if text == "" {
    return "", fmt.Errorf("no output_text found in response")
  }
  return text, nil
}

func (c *openAIClient) TranscribeFile(ctx context.Context, instruction string, fileName string, data []byte, mimeType string) (string, error) {
  if len(data) == 0 {
    return "", errors.New("empty file payload")
  }

  encoded := base64.StdEncoding.EncodeToString(data)
  req := responsesRequest{
    Model: c.model,
    Input: []responsesMessage{
      {
        Role: "user",
        Content: []responsesContentPart{
          {Type: "input_text", Text: instruction},
          {
            Type:     "input_file",
            Filename: fileName,
            FileData: fmt.Sprintf("data:%s;base64,%s", mimeType, encoded),
          },
        },
      },
    },
  }

  var resp responsesResponse
  if err := c.do(ctx, "POST", "/v1/responses", req, &resp); err != nil {
    return "", err
  }
  if resp.Refusal != "" {
    return "", fmt.Errorf("model refused: %s", resp.Refusal)
  }

  text := collectOutputText(&resp)
  if text == "" {
    return "", fmt.Errorf("no output_text found in response")
  }
  return text, nil
}
