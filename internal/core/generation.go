package core

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// GenerationRequest describes the script a user asked for.
type GenerationRequest struct {
	Topic    string `json:"topic"`
	Platform string `json:"platform,omitempty"`
	Tone     string `json:"tone,omitempty"`
	Length   string `json:"length,omitempty"`
	Language string `json:"language,omitempty"`
}

// GenerationResult is a generated script and the quota left afterwards.
type GenerationResult struct {
	Script           string `json:"script"`
	ScriptsRemaining int    `json:"scriptsRemaining"`
	ScriptsLimit     int    `json:"scriptsLimit"`
}

// GenerationService guards script generation with the IP check, the access
// policy and the quota ledger. A script is reserved before generation and
// refunded when generation fails.
type GenerationService struct {
	policy    *PolicyEvaluator
	source    *ProfileSource
	ledger    *QuotaLedger
	generator ScriptGenerator
	logger    *zap.Logger
}

// NewGenerationService creates a GenerationService.
func NewGenerationService(policy *PolicyEvaluator, source *ProfileSource, ledger *QuotaLedger, generator ScriptGenerator, logger *zap.Logger) *GenerationService {
	return &GenerationService{
		policy:    policy,
		source:    source,
		ledger:    ledger,
		generator: generator,
		logger:    logger.Named("generation"),
	}
}

// Generate produces one script for principal.
func (s *GenerationService) Generate(ctx context.Context, principal *Principal, ip string, req GenerationRequest) (*GenerationResult, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrInvalidInput)
	}
	if err := s.policy.CheckIP(ctx, ip); err != nil {
		return nil, err
	}

	profile, offline, err := s.source.Load(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	if offline {
		// Quota cannot be reserved against a cached snapshot.
		return nil, ErrOffline
	}
	if err := s.policy.Enforce(ctx, profile, principal); err != nil {
		return nil, err
	}
	if !CanGenerate(profile) {
		return nil, ErrQuotaExhausted
	}

	reserved, err := s.ledger.ConsumeOne(ctx, principal.ID)
	if err != nil {
		return nil, err
	}

	script, err := s.generator.Generate(ctx, req)
	if err != nil {
		refundCtx := context.WithoutCancel(ctx)
		if _, rerr := s.ledger.Refund(refundCtx, principal.ID); rerr != nil {
			s.logger.Error("failed to refund script after generation error",
				zap.String("uid", principal.ID), zap.Error(rerr))
		}
		return nil, fmt.Errorf("generate script: %w", err)
	}

	return &GenerationResult{
		Script:           script,
		ScriptsRemaining: reserved.ScriptsRemaining,
		ScriptsLimit:     reserved.ScriptsLimit,
	}, nil
}

