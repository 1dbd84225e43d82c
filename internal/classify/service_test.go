package classify

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/focusforge/internal/domain"
	"example.com/focusforge/internal/retry"
)

type stubText struct {
	verdict Verdict
	errs    []error
	calls   atomic.Int32
}

func (s *stubText) ClassifyText(ctx context.Context, text string) (Verdict, error) {
	n := int(s.calls.Add(1)) - 1
	if n < len(s.errs) && s.errs[n] != nil {
		return Verdict{}, s.errs[n]
	}
	return s.verdict, nil
}

type stubImage struct {
	verdict Verdict
	err     error
}

func (s *stubImage) ClassifyImage(ctx context.Context, imageBase64 string) (Verdict, error) {
	return s.verdict, s.err
}

type stubActivity struct {
	activity string
	err      error
	calls    atomic.Int32
}

func (s *stubActivity) ClassifyActivity(ctx context.Context, text string) (ActivityVerdict, error) {
	s.calls.Add(1)
	if s.err != nil {
		return ActivityVerdict{}, s.err
	}
	return ActivityVerdict{ActivityType: s.activity, Score: 0.5}, nil
}

var fastRetry = WithRetryPolicy(retry.Policy{Attempts: 3, Step: time.Millisecond})

func pngBase64(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestClassifyRequiresSomeSignal(t *testing.T) {
	svc := NewService(&stubText{}, nil, nil, fastRetry)
	_, err := svc.Classify(context.Background(), domain.ClassificationInput{Text: "   "})
	require.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestTieBreakPrefersImageOnlyWhenTextIsWeak(t *testing.T) {
	img := pngBase64(t)
	cases := []struct {
		name       string
		textScore  float64
		imageScore float64
		wantLabel  domain.Label
		wantType   domain.DataType
	}{
		{name: "weak text strong image", textScore: 0.6, imageScore: 0.8, wantLabel: domain.LabelProductive, wantType: domain.DataTypeImage},
		{name: "confident text", textScore: 0.8, imageScore: 0.9, wantLabel: domain.LabelUnproductive, wantType: domain.DataTypeText},
		{name: "both weak", textScore: 0.6, imageScore: 0.7, wantLabel: domain.LabelUnproductive, wantType: domain.DataTypeText},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text := &stubText{verdict: Verdict{Label: domain.LabelUnproductive, Score: tc.textScore}}
			image := &stubImage{verdict: Verdict{Label: domain.LabelProductive, Score: tc.imageScore}}
			svc := NewService(text, image, nil, fastRetry)

			result, err := svc.Classify(context.Background(), domain.ClassificationInput{Text: "some page", ImageBase64: img})
			require.NoError(t, err)
			require.Equal(t, tc.wantLabel, result.Label)
			require.Equal(t, tc.wantType, result.DataType)
			require.Equal(t, domain.ActivityUnknown, result.ActivityType)
		})
	}
}

func TestOverrideKeepsLabelAndRefinesActivity(t *testing.T) {
	text := &stubText{verdict: Verdict{Label: domain.LabelUnproductive, Score: 0.99}}
	activity := &stubActivity{activity: "communication"}
	svc := NewService(text, nil, activity, fastRetry)

	result, err := svc.Classify(context.Background(), domain.ClassificationInput{URL: "https://meet.google.com/abc-defg", Text: "standup notes"})
	require.NoError(t, err)
	require.Equal(t, domain.LabelProductive, result.Label)
	require.Equal(t, OverrideScore, result.Score)
	require.Equal(t, domain.ActivityCommunication, result.ActivityType)
	require.Zero(t, text.calls.Load())
}

func TestOverrideFallsBackToRuleActivity(t *testing.T) {
	svc := NewService(nil, nil, &stubActivity{err: domain.TransientError(errors.New("timeout"))}, fastRetry)

	result, err := svc.Classify(context.Background(), domain.ClassificationInput{URL: "https://www.allrecipes.com/recipe/1", Text: "pasta"})
	require.NoError(t, err)
	require.Equal(t, domain.ActivityCooking, result.ActivityType)
	require.Equal(t, "pasta", result.StoredData)

	result, err = svc.Classify(context.Background(), domain.ClassificationInput{URL: "https://zoom.us/j/1"})
	require.NoError(t, err)
	require.Equal(t, domain.ActivityMeeting, result.ActivityType)
	require.Equal(t, "https://zoom.us/j/1", result.StoredData)
}

func TestURLOnlyOutsideAllowListHasNoSignal(t *testing.T) {
	svc := NewService(&stubText{}, nil, nil, fastRetry)
	_, err := svc.Classify(context.Background(), domain.ClassificationInput{URL: "https://example.com"})
	require.True(t, errors.Is(err, domain.ErrNoValidSignal))
}

func TestTransientFailuresAreRetriedThenExcluded(t *testing.T) {
	transient := domain.TransientError(errors.New("503"))
	text := &stubText{errs: []error{transient, transient, transient}}
	svc := NewService(text, nil, nil, fastRetry)

	_, err := svc.Classify(context.Background(), domain.ClassificationInput{Text: "hello"})
	require.ErrorIs(t, err, domain.ErrTransientUpstream)
	require.False(t, errors.Is(err, domain.ErrNoValidSignal))
	require.EqualValues(t, 3, text.calls.Load())
}

func TestMixedFailuresReportNoSignal(t *testing.T) {
	transient := domain.TransientError(errors.New("503"))
	text := &stubText{errs: []error{transient, transient, transient}}
	svc := NewService(text, NewFixedImageClassifier(), nil, fastRetry)

	_, err := svc.Classify(context.Background(), domain.ClassificationInput{
		Text:        "hello",
		ImageBase64: base64.StdEncoding.EncodeToString([]byte("not an image")),
	})
	require.ErrorIs(t, err, domain.ErrNoValidSignal)
}

func TestTransientFailureRecovers(t *testing.T) {
	text := &stubText{
		verdict: Verdict{Label: domain.LabelProductive, Score: 0.75},
		errs:    []error{domain.TransientError(errors.New("timeout"))},
	}
	svc := NewService(text, nil, &stubActivity{activity: domain.ActivityCoding}, fastRetry)

	result, err := svc.Classify(context.Background(), domain.ClassificationInput{Text: "func main() {}"})
	require.NoError(t, err)
	require.Equal(t, domain.LabelProductive, result.Label)
	require.Equal(t, domain.ActivityCoding, result.ActivityType)
	require.EqualValues(t, 2, text.calls.Load())
}

func TestPermanentFailureIsNotRetried(t *testing.T) {
	text := &stubText{errs: []error{domain.InputError("bad text")}}
	svc := NewService(text, nil, nil, fastRetry)

	_, err := svc.Classify(context.Background(), domain.ClassificationInput{Text: "hello"})
	require.True(t, errors.Is(err, domain.ErrNoValidSignal))
	require.EqualValues(t, 1, text.calls.Load())
}

func TestProductiveEntertainmentBecomesStudying(t *testing.T) {
	text := &stubText{verdict: Verdict{Label: domain.LabelProductive, Score: 0.9}}
	svc := NewService(text, nil, &stubActivity{activity: domain.ActivityEntertainment}, fastRetry)

	result, err := svc.Classify(context.Background(), domain.ClassificationInput{Text: "lecture on compilers"})
	require.NoError(t, err)
	require.Equal(t, domain.ActivityStudying, result.ActivityType)
}

func TestInvalidImageIsExcluded(t *testing.T) {
	svc := NewService(nil, NewFixedImageClassifier(), nil, fastRetry)

	_, err := svc.Classify(context.Background(), domain.ClassificationInput{ImageBase64: base64.StdEncoding.EncodeToString([]byte("not an image"))})
	require.True(t, errors.Is(err, domain.ErrNoValidSignal))

	result, err := svc.Classify(context.Background(), domain.ClassificationInput{ImageBase64: "data:image/png;base64," + pngBase64(t)})
	require.NoError(t, err)
	require.Equal(t, domain.DataTypeImage, result.DataType)
	require.True(t, strings.HasPrefix(result.StoredData, "sha256:"))
	require.Equal(t, DefaultImageScore, result.Score)
}

func TestStoredTextIsTruncated(t *testing.T) {
	text := &stubText{verdict: Verdict{Label: domain.LabelUnproductive, Score: 0.9}}
	svc := NewService(text, nil, nil, fastRetry)

	result, err := svc.Classify(context.Background(), domain.ClassificationInput{Text: strings.Repeat("a", 2500)})
	require.NoError(t, err)
	require.Len(t, result.StoredData, domain.MaxStoredText)
}
