package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
)

// GCPSpeech transcribes through Google Cloud Speech-to-Text long-running
// recognition with inline audio.
type GCPSpeech struct {
	client   *speech.Client
	language string
}

func NewGCPSpeech(ctx context.Context, credentialsFile, language string) (*GCPSpeech, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return &GCPSpeech{client: c, language: speechLanguage(language)}, nil
}

func (g *GCPSpeech) Name() string { return "gcp_speech" }

func (g *GCPSpeech) Close() error { return g.client.Close() }

func (g *GCPSpeech) Transcribe(ctx context.Context, audioPath string) (string, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   encodingFor(audioPath),
			SampleRateHertz:            16000,
			LanguageCode:               g.language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}},
	}
	op, err := g.client.LongRunningRecognize(ctx, req)
	if err != nil {
		return "", fmt.Errorf("speech longrunningrecognize: %w", err)
	}
	resp, err := op.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("speech wait: %w", err)
	}
	return joinResults(resp), nil
}

func joinResults(resp *speechpb.LongRunningRecognizeResponse) string {
	if resp == nil {
		return ""
	}
	parts := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func encodingFor(path string) speechpb.RecognitionConfig_AudioEncoding {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return speechpb.RecognitionConfig_LINEAR16
	case ".flac":
		return speechpb.RecognitionConfig_FLAC
	case ".ogg", ".opus":
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		return speechpb.RecognitionConfig_MP3
	}
}

// speechLanguage maps the short codes Whisper takes to BCP-47 tags.
func speechLanguage(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "", "en":
		return "en-US"
	case "zh":
		return "zh-CN"
	default:
		return lang
	}
}
