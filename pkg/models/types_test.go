package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validationInput() PredictionInput {
	return PredictionInput{
		UserID:               "user-1",
		TopicID:              "topic-1",
		AttemptCount:         10,
		CorrectAttempts:      7,
		AvgResponseTime:      12.5,
		SelfConfidenceRating: 0.8,
		DifficultyFeedback:   3,
		SessionDuration:      30.0,
		PreviousMasteryScore: 0.6,
		TimeSinceLastAttempt: 48.0,
	}
}

func TestValidateAcceptsValidInput(t *testing.T) {
	input := validationInput()
	assert.NoError(t, input.Validate())
}

func TestValidateRejectsCorrectAttemptsOverTotal(t *testing.T) {
	input := validationInput()
	input.CorrectAttempts = 11

	err := input.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "correct_attempts cannot exceed attempt_count")
}

func TestValidateCollectsAllViolations(t *testing.T) {
	// 1回の検証で全違反が列挙されること
	input := PredictionInput{
		UserID:               "",
		TopicID:              "",
		AttemptCount:         0,
		CorrectAttempts:      -1,
		AvgResponseTime:      -1,
		SelfConfidenceRating: 2,
		DifficultyFeedback:   0,
		SessionDuration:      0,
		PreviousMasteryScore: -0.5,
		TimeSinceLastAttempt: -1,
	}

	err := input.Validate()
	assert.Error(t, err)

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Violations, 10)
}

func TestValidateBoundaryValues(t *testing.T) {
	// 境界値はすべて有効
	input := validationInput()
	input.AttemptCount = 1
	input.CorrectAttempts = 1
	input.SelfConfidenceRating = 1.0
	input.DifficultyFeedback = 5
	input.PreviousMasteryScore = 0.0
	input.TimeSinceLastAttempt = 0.0
	input.AvgResponseTime = 0.0

	assert.NoError(t, input.Validate())
}

func TestIsValidationError(t *testing.T) {
	input := validationInput()
	input.AttemptCount = 0

	err := input.Validate()
	assert.True(t, IsValidationError(err))
	assert.False(t, IsValidationError(ErrModelsNotLoaded))
}
