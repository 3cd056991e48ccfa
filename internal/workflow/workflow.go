// Package workflow 负责广告的审批流转。提交时版本号加一并冻结整图快照。
package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"adBuilder/internal/model"
)

// ErrInvalidTransition 当前状态不允许该操作。
var ErrInvalidTransition = errors.New("workflow: invalid status transition")

// 审批操作
const (
	ActionSubmit         = "submit"
	ActionApprove        = "approve"
	ActionReject         = "reject"
	ActionRequestChanges = "request_changes"
	ActionPublish        = "publish"
)

type edge struct {
	from, action string
}

var transitions = map[edge]string{
	{model.StatusDraft, ActionSubmit}:            model.StatusInReview,
	{model.StatusInReview, ActionApprove}:        model.StatusApproved,
	{model.StatusInReview, ActionReject}:         model.StatusDraft,
	{model.StatusInReview, ActionRequestChanges}: model.StatusDraft,
	{model.StatusApproved, ActionPublish}:        model.StatusPublished,
}

// Next 返回在 status 上执行 action 后的状态。
func Next(status, action string) (string, error) {
	if status == "" {
		status = model.StatusDraft
	}
	to, ok := transitions[edge{status, action}]
	if !ok {
		return "", fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, status)
	}
	return to, nil
}

// Version 是提交时广告的只读记录。
type Version struct {
	AdID      string
	Version   int
	Snapshot  []byte
	CreatedAt time.Time
}

// AuditRecord 描述一次流转。
type AuditRecord struct {
	AdID       string
	Action     string
	FromStatus string
	ToStatus   string
	Comment    string
	At         time.Time
}

type Result struct {
	Ad      model.Ad
	Version *Version
	Audit   AuditRecord
}

// Apply 对 ad 执行 action，不修改入参。只有 reject 和 request_changes 保留 comment。
func Apply(ad model.Ad, action, comment string, now time.Time) (Result, error) {
	from := ad.Status
	if from == "" {
		from = model.StatusDraft
	}
	to, err := Next(from, action)
	if err != nil {
		return Result{}, err
	}

	ad.Status = to
	res := Result{
		Audit: AuditRecord{
			AdID:       ad.ID,
			Action:     action,
			FromStatus: from,
			ToStatus:   to,
			At:         now,
		},
	}
	if action == ActionReject || action == ActionRequestChanges {
		res.Audit.Comment = comment
	}

	if action == ActionSubmit {
		ad.Version++
		snap, err := json.Marshal(ad)
		if err != nil {
			return Result{}, fmt.Errorf("marshal version snapshot: %w", err)
		}
		res.Version = &Version{AdID: ad.ID, Version: ad.Version, Snapshot: snap, CreatedAt: now}
	}
	res.Ad = ad
	return res, nil
}

// Editable 表示该状态下能否修改画布。
func Editable(status string) bool {
	return status == "" || status == model.StatusDraft
}
