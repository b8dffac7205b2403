package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New は新しいイベントを生成する。
// dataにはイベント固有のデータ構造体を渡す。JSON形式にシリアライズされる。
func New(aggregateID string, aggregateType AggregateType, name Type, data any) (*Event, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("イベントデータのシリアライズに失敗: %w", err)
	}

	return &Event{
		ID:            uuid.New().String(),
		Name:          name,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Data:          jsonData,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// NewPostEvent は投稿の変更を表すpostEventイベントを生成する。
func NewPostEvent(postID string, action Action, post any) (*Event, error) {
	return New(postID, AggregateTypePost, TypePostEvent, PostEventData{Action: action, Post: post})
}

// DecodeData はイベントのDataフィールドを指定された型にデシリアライズする。
func DecodeData[T any](e *Event) (*T, error) {
	var data T
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("イベントデータのデシリアライズに失敗: %w", err)
	}
	return &data, nil
}

// Marshal はイベントを配信用のJSONに変換する。
func Marshal(e *Event) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("イベントのシリアライズに失敗: %w", err)
	}
	return b, nil
}
