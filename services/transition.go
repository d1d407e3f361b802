package services

import (
	"context"

	"scholarship-aid-api/metrics"
	"scholarship-aid-api/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type transitionRequest struct {
	Action   Action
	To       models.ApplicationStatus
	Actor    AuthContext
	Notes    *string
	Updates  map[string]interface{}
	Metadata map[string]interface{}
}

type transitionEdge struct{ from, to string }

type transitionBuffer struct{ edges []transitionEdge }

type transitionBufferKey struct{}

// transact runs fn in a transaction. Status transitions applied inside it are
// counted only once the transaction has committed.
func transact(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	buf := &transitionBuffer{}
	ctx = context.WithValue(ctx, transitionBufferKey{}, buf)
	if err := db.WithContext(ctx).Transaction(fn); err != nil {
		return err
	}
	for _, e := range buf.edges {
		metrics.RecordTransition(e.from, e.to)
	}
	return nil
}

func recordTransition(tx *gorm.DB, from, to models.ApplicationStatus) {
	if tx.Statement != nil && tx.Statement.Context != nil {
		if buf, ok := tx.Statement.Context.Value(transitionBufferKey{}).(*transitionBuffer); ok {
			buf.edges = append(buf.edges, transitionEdge{from: string(from), to: string(to)})
			return
		}
	}
	metrics.RecordTransition(string(from), string(to))
}

// applyTransition moves app along one edge of the state graph inside tx. The
// status update is a compare-and-swap on the current status and is always
// paired with a status-history row, so both commit or neither does.
func applyTransition(tx *gorm.DB, app *models.Application, req transitionRequest) error {
	from := app.Status
	if err := CheckTransition(req.Action, from, req.To); err != nil {
		return err
	}

	ts := now()
	updates := map[string]interface{}{
		"status":     string(req.To),
		"updated_at": ts,
	}
	for k, v := range req.Updates {
		updates[k] = v
	}

	res := tx.Model(&models.Application{}).
		Where("id = ? AND status = ?", app.ID, string(from)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return StateGuardError("application %d is no longer %s", app.ID, from)
	}

	old := from
	history := models.ApplicationStatusHistory{
		ApplicationID: app.ID,
		OldStatus:     &old,
		NewStatus:     req.To,
		Action:        string(req.Action),
		ChangedBy:     req.Actor.UserID,
		Notes:         req.Notes,
		CreatedAt:     ts,
	}
	if len(req.Metadata) > 0 {
		history.Metadata = datatypes.JSONMap(req.Metadata)
	}
	if err := tx.Create(&history).Error; err != nil {
		return err
	}

	app.Status = req.To
	app.UpdatedAt = ts
	recordTransition(tx, from, req.To)
	return nil
}

// recordCreation writes the initial history row of a new application.
func recordCreation(tx *gorm.DB, app *models.Application, actor AuthContext) error {
	history := models.ApplicationStatusHistory{
		ApplicationID: app.ID,
		NewStatus:     app.Status,
		Action:        "create",
		ChangedBy:     actor.UserID,
		CreatedAt:     now(),
	}
	return tx.Create(&history).Error
}

func preloadApplication(db *gorm.DB) *gorm.DB {
	return db.Preload("Student").Preload("School").Preload("Category")
}

// lockApplication loads an application FOR UPDATE, filtered by the caller's scope.
func lockApplication(tx *gorm.DB, auth AuthContext, id uint) (*models.Application, error) {
	var app models.Application
	q := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("applications.id = ?", id)
	if err := auth.ScopeApplications(q).First(&app).Error; err != nil {
		return nil, notFoundOr(err, "application", id)
	}
	return &app, nil
}

func reloadApplication(tx *gorm.DB, id uint) (*models.Application, error) {
	var app models.Application
	if err := preloadApplication(tx).First(&app, id).Error; err != nil {
		return nil, notFoundOr(err, "application", id)
	}
	return &app, nil
}
