package services

import (
  "context"
  "fmt"
  "os"
  "strings"
  "time"

  speech "cloud.google.com/go/speech/apiv1"
  "cloud.google.com/go/speech/apiv1/speechpb"
  "google.golang.org/api/option"
  "google.golang.org/grpc/codes"
  "google.golang.org/grpc/status"

  "github.com/edulens/edulens-backend/internal/logger"
)

// SpeechProviderService transcribes uploaded audio through GCP
// Speech-to-Text. It is an optional leading strategy in the transcription
// tier list, enabled only when credentials are configured.
type SpeechProviderService interface {
  TranscribeAudioBytes(ctx context.Context, audio []byte, mimeType string) (string, error)
  Close() error
}

type speechProviderService struct {
  log    *logger.Logger
  client *speech.Client

  maxRetries int
}

func NewSpeechProviderService(log *logger.Logger) (SpeechProviderService, error) {
  if log == nil {
    return nil, fmt.Errorf("logger required")
  }
  slog := log.With("service", "SpeechProviderService")

  creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))

  ctx := context.Background()

  var c *speech.Client
  var err error
  if creds != "" {
    c, err = speech.NewClient(ctx, option.WithCredentialsFile(creds))
  } else {
    c, err = speech.NewClient(ctx)
  }
  if err != nil {
    return nil, fmt.Errorf("speech client: %w", err)
  }

  return &speechProviderService{
    log:        slog,
    client:     c,
    maxRetries: 3,
  }, nil
}

func (s *speechProviderService) Close() error {
  if s == nil || s.client == nil {
    return nil
  }
  return s.client.Close()
}

func (s *speechProviderService) TranscribeAudioBytes(ctx context.Context, audio []byte, mimeType string) (string, error) {
  if len(audio) == 0 {
    return "", fmt.Errorf("empty audio payload")
  }

  ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
  defer cancel()

  req := &speechpb.LongRunningRecognizeRequest{
    Config: &speechpb.RecognitionConfig{
      LanguageCode:               "en-US",
      EnableAutomaticPunctuation: true,
      Encoding:                   inferSpeechEncoding(mimeType),
    },
    Audio: &speechpb.RecognitionAudio{
      AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
    },
  }

  var resp *speechpb.LongRunningRecognizeResponse
  var err error
  backoff := 1 * time.Second
  for attempt := 0; attempt <= s.maxRetries; attempt++ {
    if ctx.Err() != nil {
      return "", ctx.Err()
    }
    var op *speech.LongRunningRecognizeOperation
    op, err = s.client.LongRunningRecognize(ctx, req)
    if err == nil {
      resp, err = op.Wait(ctx)
    }
    if err == nil {
      break
    }
    if !isRetryableGRPC(err) || attempt == s.maxRetries {
      return "", fmt.Errorf("speech longrunningrecognize: %w", err)
    }
    s.log.Warn("Speech request retrying", "attempt", attempt+1, "error", err.Error())
    time.Sleep(jitterSleep(backoff))
    backoff *= 2
  }

  var parts []string
  for _, result := range resp.GetResults() {
    alts := result.GetAlternatives()
    if len(alts) == 0 {
      continue
    }
    if text := strings.TrimSpace(alts[0].GetTranscript()); text != "" {
      parts = append(parts, text)
    }
  }
  text := strings.TrimSpace(strings.Join(parts, " "))
  if text == "" {
    return "", fmt.Errorf("speech recognition returned no transcript")
  }
  return text, nil
}

func isRetryableGRPC(err error) bool {
  st, ok := status.FromError(err)
  if !ok {
    return false
  }
  switch st.Code() {
  case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted:
    return true
  default:
    return false
  }
}

func inferSpeechEncoding(mimeType string) speechpb.RecognitionConfig_AudioEncoding {
  switch strings.ToLower(strings.TrimSpace(mimeType)) {
  case "audio/wav", "audio/x-wav", "audio/wave":
    return speechpb.RecognitionConfig_LINEAR16
  case "audio/flac":
    return speechpb.RecognitionConfig_FLAC
  case "audio/ogg", "audio/webm":
    return speechpb.RecognitionConfig_OGG_OPUS
  case "audio/amr":
    return speechpb.RecognitionConfig_AMR
  default:
    // mp3/mp4 containers and everything else: let the service infer.
    return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
  }
}
