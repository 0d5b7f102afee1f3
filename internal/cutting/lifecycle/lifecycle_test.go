package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
)

func TestValidateTransitions(t *testing.T) {
	cases := []struct {
		from   entity.PlanStatus
		action Action
		want   entity.PlanStatus
		ok     bool
	}{
		{entity.PlanStatusPending, ActionEdit, entity.PlanStatusPending, true},
		{entity.PlanStatusPending, ActionPublish, entity.PlanStatusInProgress, true},
		{entity.PlanStatusInProgress, ActionComplete, entity.PlanStatusCompleted, true},
		{entity.PlanStatusCompleted, ActionFreeze, entity.PlanStatusFrozen, true},
		{entity.PlanStatusFrozen, ActionDelete, entity.PlanStatusFrozen, true},
		{entity.PlanStatusInProgress, ActionDelete, entity.PlanStatusInProgress, true},
		{entity.PlanStatusInProgress, ActionRecord, entity.PlanStatusInProgress, true},

		{entity.PlanStatusInProgress, ActionEdit, "", false},
		{entity.PlanStatusCompleted, ActionEdit, "", false},
		{entity.PlanStatusFrozen, ActionEdit, "", false},
		{entity.PlanStatusPending, ActionFreeze, "", false},
		{entity.PlanStatusPending, ActionComplete, "", false},
		{entity.PlanStatusInProgress, ActionPublish, "", false},
		{entity.PlanStatusFrozen, ActionFreeze, "", false},
		{entity.PlanStatusPending, ActionRecord, "", false},
		{entity.PlanStatusCompleted, ActionRecord, "", false},
	}
	for _, tc := range cases {
		got, err := Validate(tc.from, tc.action)
		if !tc.ok {
			var te *TransitionError
			require.True(t, errors.As(err, &te), "%s from %s", tc.action, tc.from)
			assert.Equal(t, tc.from, te.From)
			assert.Equal(t, tc.action, te.Action)
			continue
		}
		require.NoError(t, err, "%s from %s", tc.action, tc.from)
		assert.Equal(t, tc.want, got)
	}
}

func TestValidateUnknownStatus(t *testing.T) {
	_, err := Validate("archived", ActionDelete)
	assert.Error(t, err)
}

func TestValidatePublishNeedsTask(t *testing.T) {
	zeroRatio := entity.Layout{
		ID:     "L1",
		Ratios: []entity.SizeRatio{{Size: "S", Ratio: 0}},
		Tasks:  []entity.Task{{Color: "red", PlannedLayers: 10}},
	}
	plan := &entity.Plan{Status: entity.PlanStatusPending, Layouts: []entity.Layout{zeroRatio}}

	_, err := ValidatePublish(plan)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ActionPublish, te.Action)

	plan.Layouts = nil
	_, err = ValidatePublish(plan)
	require.ErrorAs(t, err, &te)

	plan.Layouts = []entity.Layout{zeroRatio, {
		ID:     "L2",
		Ratios: []entity.SizeRatio{{Size: "S", Ratio: 1}},
		Tasks:  []entity.Task{{Color: "red", PlannedLayers: 3}},
	}}
	next, err := ValidatePublish(plan)
	require.NoError(t, err)
	assert.Equal(t, entity.PlanStatusInProgress, next)
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "待发布", StatusLabel(entity.PlanStatusPending))
	assert.Equal(t, "已冻结", StatusLabel(entity.PlanStatusFrozen))
	assert.True(t, CanEdit(entity.PlanStatusPending))
	assert.False(t, CanEdit(entity.PlanStatusCompleted))
}
