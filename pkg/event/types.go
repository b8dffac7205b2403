package event

import (
	"encoding/json"
	"time"
)

// AggregateType はイベントの対象となるエンティティの種類を表す。
type AggregateType string

const (
	// AggregateTypePost は投稿エンティティを表す。
	AggregateTypePost AggregateType = "Post"
	// AggregateTypeUser はユーザーエンティティを表す。
	AggregateTypeUser AggregateType = "User"
)

// Type はイベントの種類を表す。購読側はこの値でチャネルを区別する。
type Type string

const (
	// TypePostEvent は投稿が作成・編集・削除されたことを表す。
	TypePostEvent Type = "postEvent"
)

// Action は投稿に対して行われた変更の種類。
type Action string

const (
	// ActionCreate は投稿の作成。
	ActionCreate Action = "create"
	// ActionEdit は投稿の編集。
	ActionEdit Action = "edit"
	// ActionDelete は投稿の削除。
	ActionDelete Action = "delete"
)

// Event は購読者へ配信する変更通知を表す。
// 配信はベストエフォートで、永続化はしない。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// Name はイベントの種類。
	Name Type `json:"name"`
	// AggregateType は対象エンティティの種類。
	AggregateType AggregateType `json:"aggregateType"`
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregateId"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"createdAt"`
}

// PostEventData はpostEventイベントのデータ。
type PostEventData struct {
	// Action は変更の種類。
	Action Action `json:"action"`
	// Post は変更後（削除の場合は削除前）の投稿。作成者の概要を含む。
	Post any `json:"post"`
}
