// Package classify fuses the text, image and activity sub-classifiers into a single
// productivity decision.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"example.com/focusforge/internal/domain"
	"example.com/focusforge/internal/observability"
	"example.com/focusforge/internal/retry"
)

const (
	// imagePreferenceThreshold splits the tie-break: image wins only when text is strictly
	// below and image strictly above it.
	imagePreferenceThreshold = 0.7

	sourceText  = "text"
	sourceImage = "image"
	sourceRule  = "rule"
)

// Verdict is a productivity label with its confidence.
type Verdict struct {
	Label domain.Label
	Score float64
}

// ActivityVerdict is a zero-shot activity label with its confidence.
type ActivityVerdict struct {
	ActivityType string
	Score        float64
}

// TextClassifier labels text as productive or unproductive.
type TextClassifier interface {
	ClassifyText(ctx context.Context, text string) (Verdict, error)
}

// ImageClassifier labels a base64 encoded screenshot.
type ImageClassifier interface {
	ClassifyImage(ctx context.Context, imageBase64 string) (Verdict, error)
}

// ActivityClassifier assigns one label from domain.ActivityLabels to text.
type ActivityClassifier interface {
	ClassifyActivity(ctx context.Context, text string) (ActivityVerdict, error)
}

// Service runs rule overrides and the sub-classifier fan-out.
type Service struct {
	text     TextClassifier
	image    ImageClassifier
	activity ActivityClassifier
	rules    *RuleSet
	policy   retry.Policy
	logger   *slog.Logger
}

// Option customises the Service.
type Option func(*Service)

// WithRules replaces the default allow-list.
func WithRules(rules *RuleSet) Option {
	return func(s *Service) {
		if rules != nil {
			s.rules = rules
		}
	}
}

// WithRetryPolicy overrides the per-call retry policy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService wires the sub-classifiers. Any of them may be nil, in which case it never contributes.
func NewService(text TextClassifier, image ImageClassifier, activity ActivityClassifier, opts ...Option) *Service {
	svc := &Service{
		text:     text,
		image:    image,
		activity: activity,
		rules:    DefaultRules(),
		policy:   retry.DefaultPolicy,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Classify produces the fused decision for one sample.
func (s *Service) Classify(ctx context.Context, input domain.ClassificationInput) (domain.ClassificationResult, error) {
	input.Text = strings.TrimSpace(input.Text)
	input.URL = strings.TrimSpace(input.URL)
	input.ImageBase64 = strings.TrimSpace(input.ImageBase64)
	if input.Empty() {
		return domain.ClassificationResult{}, domain.InputError("one of text, imageBase64 or url is required")
	}

	if rule, ok := s.rules.Match(input.URL); ok {
		return s.classifyOverride(ctx, input, rule)
	}

	if input.Text == "" && input.ImageBase64 == "" {
		observability.RecordClassification(sourceRule, string(domain.CodeNoValidSignal))
		return domain.ClassificationResult{}, fmt.Errorf("url %q is not on the allow-list: %w", input.URL, domain.ErrNoValidSignal)
	}

	var (
		textVerdict     *Verdict
		imageVerdict    *Verdict
		activityVerdict *ActivityVerdict
		textErr         error
		imageErr        error
	)
	g, gctx := errgroup.WithContext(ctx)
	if input.Text != "" && s.text != nil {
		g.Go(func() error {
			textVerdict, textErr = s.callVerdict(gctx, sourceText, func(ctx context.Context) (Verdict, error) {
				return s.text.ClassifyText(ctx, input.Text)
			})
			return ctx.Err()
		})
	}
	if input.ImageBase64 != "" && s.image != nil {
		g.Go(func() error {
			imageVerdict, imageErr = s.callVerdict(gctx, sourceImage, func(ctx context.Context) (Verdict, error) {
				return s.image.ClassifyImage(ctx, input.ImageBase64)
			})
			return ctx.Err()
		})
	}
	if input.Text != "" && s.activity != nil {
		g.Go(func() error {
			activityVerdict = s.classifyActivity(gctx, input.Text)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return domain.ClassificationResult{}, err
	}

	verdict, source, ok := fuse(textVerdict, imageVerdict)
	if !ok {
		if upstreamDown(textErr, imageErr) {
			observability.RecordClassification(sourceText, string(domain.CodeUpstreamUnavailable))
			return domain.ClassificationResult{}, &domain.Error{Kind: domain.ErrTransientUpstream, Detail: "every classifier is unavailable"}
		}
		observability.RecordClassification(sourceText, string(domain.CodeNoValidSignal))
		return domain.ClassificationResult{}, domain.ErrNoValidSignal
	}

	result := domain.ClassificationResult{
		Label:        verdict.Label,
		Score:        verdict.Score,
		ActivityType: domain.ActivityUnknown,
	}
	if activityVerdict != nil {
		result.ActivityType = activityVerdict.ActivityType
	}
	result.StoredData, result.DataType = storedData(input, source)
	result.ActivityType = refineActivity(result.Label, result.ActivityType)

	observability.RecordClassification(source, string(result.Label))
	return result, nil
}

func (s *Service) classifyOverride(ctx context.Context, input domain.ClassificationInput, rule Rule) (domain.ClassificationResult, error) {
	result := domain.ClassificationResult{
		Label:        domain.LabelProductive,
		Score:        OverrideScore,
		ActivityType: rule.ActivityType,
	}
	if input.Text != "" && s.activity != nil {
		// The activity classifier only refines the type; the label stays productive.
		if refined := s.classifyActivity(ctx, input.Text); refined != nil && refined.ActivityType != domain.ActivityUnknown {
			result.ActivityType = refined.ActivityType
		}
	}
	if err := ctx.Err(); err != nil {
		return domain.ClassificationResult{}, err
	}
	source := sourceText
	if input.Text == "" && input.ImageBase64 != "" {
		source = sourceImage
	}
	result.StoredData, result.DataType = storedData(input, source)
	if result.StoredData == "" {
		result.StoredData = input.URL
	}
	result.ActivityType = refineActivity(result.Label, result.ActivityType)

	observability.RecordClassification(sourceRule, string(result.Label))
	return result, nil
}

func (s *Service) classifyActivity(ctx context.Context, text string) *ActivityVerdict {
	var out ActivityVerdict
	err := s.withRetry(ctx, "activity", func(ctx context.Context) error {
		verdict, err := s.activity.ClassifyActivity(ctx, text)
		if err != nil {
			return err
		}
		out = verdict
		return nil
	})
	if err != nil {
		return nil
	}
	out.ActivityType = domain.CanonicalActivity(out.ActivityType)
	return &out
}

func (s *Service) callVerdict(ctx context.Context, kind string, call func(context.Context) (Verdict, error)) (*Verdict, error) {
	var out Verdict
	err := s.withRetry(ctx, kind, func(ctx context.Context) error {
		verdict, err := call(ctx)
		if err != nil {
			return err
		}
		if !verdict.Label.Valid() {
			return fmt.Errorf("%s classifier returned label %q", kind, verdict.Label)
		}
		out = verdict
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// upstreamDown reports whether every attempted signal was lost to a transient failure.
func upstreamDown(errs ...error) bool {
	seen := false
	for _, err := range errs {
		if err == nil {
			continue
		}
		if !domain.IsTransient(err) {
			return false
		}
		seen = true
	}
	return seen
}

func (s *Service) withRetry(ctx context.Context, kind string, op func(context.Context) error) error {
	err := retry.Do(ctx, s.policy, domain.IsTransient, op, func(err error, wait time.Duration) {
		s.logger.Debug("retrying sub-classifier", slog.String("kind", kind), slog.Duration("wait", wait), slog.Any("error", err))
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		observability.RecordSubClassifierFailure(kind)
		s.logger.Warn("sub-classifier excluded from fusion", slog.String("kind", kind), slog.Any("error", err))
	}
	return err
}

// fuse applies the tie-break between text and image verdicts.
func fuse(text, image *Verdict) (Verdict, string, bool) {
	switch {
	case text != nil && image != nil:
		if text.Score < imagePreferenceThreshold && image.Score > imagePreferenceThreshold {
			return *image, sourceImage, true
		}
		return *text, sourceText, true
	case text != nil:
		return *text, sourceText, true
	case image != nil:
		return *image, sourceImage, true
	}
	return Verdict{}, "", false
}

// refineActivity applies the post-fusion correction for productive entertainment.
func refineActivity(label domain.Label, activity string) string {
	if label == domain.LabelProductive && activity == domain.ActivityEntertainment {
		return domain.ActivityStudying
	}
	return activity
}

func storedData(input domain.ClassificationInput, source string) (string, domain.DataType) {
	if source == sourceImage && input.ImageBase64 != "" {
		return ImageRef(input.ImageBase64), domain.DataTypeImage
	}
	if input.Text != "" {
		return domain.Truncate(input.Text, domain.MaxStoredText), domain.DataTypeText
	}
	if input.ImageBase64 != "" {
		return ImageRef(input.ImageBase64), domain.DataTypeImage
	}
	return "", domain.DataTypeText
}
