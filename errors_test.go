package graft_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/graft"
)

func TestPlanningErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{
			name: "DependencyCycle",
			err: &graft.DependencyCycleError{
				Path:    []string{"Person#0", "Passport#1", "Person#0"},
				Columns: []string{"Passport.holder_id", "Person.passport_id"},
			},
			msg: "graft: unresolvable dependency cycle Person#0 -> Passport#1 -> Person#0 through non-nullable columns Passport.holder_id, Person.passport_id",
		},
		{
			name: "MissingTarget",
			err:  &graft.MissingTargetError{Entity: "Post", Relation: "author", Target: "User"},
			msg:  "graft: Post.author references a new User that is not cascaded; save it first or enable cascade",
		},
		{
			name: "AmbiguousIdentity",
			err:  &graft.AmbiguousIdentityError{Entity: "User", ID: "id=1", Column: "name"},
			msg:  `graft: ambiguous identity for User (id=id=1): records disagree on "name"`,
		},
		{
			name: "AmbiguousIdentityNoColumn",
			err:  &graft.AmbiguousIdentityError{Entity: "User", ID: 1},
			msg:  "graft: ambiguous identity for User (id=1)",
		},
		{
			name: "MissingIdentifier",
			err:  &graft.MissingIdentifierError{Entity: "User", Op: graft.OpRemove},
			msg:  "graft: OpRemove of User requires a primary key value",
		},
		{
			name: "MissingDeleteDateColumn",
			err:  &graft.MissingDeleteDateColumnError{Entity: "Team"},
			msg:  "graft: Team has no delete date column",
		},
		{
			name: "Orphan",
			err:  &graft.OrphanError{Entity: "Post", Relation: "User.posts", ID: "id=2"},
			msg:  "graft: cannot orphan Post (id=id=2) from User.posts: foreign key is not nullable",
		},
		{
			name: "Privacy",
			err:  &graft.PrivacyError{Entity: "User", Op: graft.OpInsert, Err: errors.New("denied")},
			msg:  "graft: privacy denied OpInsert on User: denied",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.EqualError(t, tt.err, tt.msg)
			assert.ErrorIs(t, tt.err, graft.ErrPlanning)
			assert.True(t, graft.IsPlanningError(tt.err))
			assert.True(t, graft.IsPlanningError(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}
}

func TestIsPlanningError(t *testing.T) {
	assert.False(t, graft.IsPlanningError(nil))
	assert.False(t, graft.IsPlanningError(errors.New("driver: bad connection")))
	assert.False(t, graft.IsPlanningError(graft.ErrUnknownEntity))
	assert.True(t, graft.IsPlanningError(graft.ErrPlanning))
}

func TestErrorPredicates(t *testing.T) {
	cycle := fmt.Errorf("save: %w", &graft.DependencyCycleError{Path: []string{"A#0", "A#0"}})
	target := fmt.Errorf("save: %w", &graft.MissingTargetError{Entity: "Post", Relation: "author", Target: "User"})
	denied := fmt.Errorf("save: %w", &graft.PrivacyError{Entity: "User", Op: graft.OpRemove})

	assert.True(t, graft.IsDependencyCycle(cycle))
	assert.False(t, graft.IsDependencyCycle(target))
	assert.True(t, graft.IsMissingTarget(target))
	assert.False(t, graft.IsMissingTarget(denied))
	assert.True(t, graft.IsPrivacyError(denied))
	assert.False(t, graft.IsPrivacyError(cycle))
}

func TestPrivacyErrorUnwrap(t *testing.T) {
	decision := errors.New("viewer is not an admin")
	err := &graft.PrivacyError{Entity: "User", Op: graft.OpUpdate, Err: decision}
	assert.ErrorIs(t, err, decision)
	assert.ErrorIs(t, err, graft.ErrPlanning)
}

func TestRollbackError(t *testing.T) {
	cause := errors.New("constraint failed")
	rollback := errors.New("connection lost")
	err := &graft.RollbackError{Err: cause, Rollback: rollback}

	assert.EqualError(t, err, "graft: constraint failed: rollback failed: connection lost")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, rollback)

	t.Run("PlanningCause", func(t *testing.T) {
		err := &graft.RollbackError{Err: &graft.OrphanError{Entity: "Post"}, Rollback: rollback}
		var oerr *graft.OrphanError
		require.ErrorAs(t, err, &oerr)
		assert.Equal(t, "Post", oerr.Entity)
		assert.True(t, graft.IsPlanningError(err))
	})
}

func TestAggregateError(t *testing.T) {
	t.Run("NoErrors", func(t *testing.T) {
		assert.NoError(t, graft.NewAggregateError())
		assert.NoError(t, graft.NewAggregateError(nil, nil))
	})

	t.Run("SingleError", func(t *testing.T) {
		single := errors.New("single error")
		assert.Equal(t, single, graft.NewAggregateError(nil, single, nil))
	})

	t.Run("MultipleErrors", func(t *testing.T) {
		err1 := errors.New("error 1")
		err2 := &graft.MissingIdentifierError{Entity: "User", Op: graft.OpRemove}
		err := graft.NewAggregateError(err1, err2)

		require.Error(t, err)
		assert.Equal(t, "graft: multiple errors:\n  [1] error 1\n  [2] "+err2.Error(), err.Error())
		assert.ErrorIs(t, err, err1)
		assert.True(t, graft.IsPlanningError(err))
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Equal(t, "graft: no errors", (&graft.AggregateError{}).Error())
	})
}
