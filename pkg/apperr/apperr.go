// Package apperr はアプリケーション全体で共有するエラー分類を提供する。
//
// すべてのエラーは安定した種別（Kind）を持ち、トランスポート層（RESTとGraphQL）は
// 種別からHTTPステータスコードを決定する。種別を持たないエラーはInternalとして扱う。
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind はエラーの分類を表す。
type Kind int

const (
	// Internal は想定外のエラーやストアの障害を表す。
	Internal Kind = iota
	// Unauthenticated は認証が必要な操作で有効な識別情報が無いことを表す。
	Unauthenticated
	// Forbidden は認証済みだが対象リソースの所有者ではないことを表す。
	Forbidden
	// NotFound は参照されたエンティティが存在しないことを表す。
	NotFound
	// InvalidInput は入力値の検証に失敗したことを表す。
	InvalidInput
	// Conflict は一意キーの重複を表す。
	Conflict
)

// String はログ出力用の種別名を返す。
func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	case InvalidInput:
		return "invalid_input"
	case Conflict:
		return "conflict"
	default:
		return "internal"
	}
}

// HTTPStatus は種別に対応するHTTPステータスコードを返す。
func (k Kind) HTTPStatus() int {
	switch k {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case InvalidInput:
		return http.StatusUnprocessableEntity
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Violation はフィールド単位の検証エラーメッセージ。
type Violation struct {
	// Message は利用者に提示するメッセージ。
	Message string `json:"message"`
}

// Error は種別付きのアプリケーションエラー。
type Error struct {
	// Kind はエラーの分類。
	Kind Kind
	// Message は利用者に返すメッセージ。
	Message string
	// Violations はInvalidInputの場合のみ設定される検証エラー一覧。
	Violations []Violation
	// Err は原因となったエラー。
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap は原因エラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// Extensions はGraphQLのエラー拡張フィールドを返す。
// graphql-goはこのメソッドを持つエラーの戻り値をextensionsに設定する。
func (e *Error) Extensions() map[string]any {
	ext := map[string]any{"status": e.Kind.HTTPStatus()}
	if len(e.Violations) > 0 {
		ext["data"] = e.Violations
	}
	return ext
}

// New は指定種別のエラーを生成する。
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap は原因エラーを保持した種別付きエラーを生成する。
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Invalid は検証エラー一覧を持つInvalidInputエラーを生成する。
func Invalid(message string, violations []Violation) *Error {
	return &Error{Kind: InvalidInput, Message: message, Violations: violations}
}

// KindOf はエラーの種別を返す。種別を持たないエラーはInternalになる。
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// Is はエラーが指定種別かどうかを判定する。
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Response はトランスポート層が返すエラーボディ。
type Response struct {
	// Message はエラーメッセージ。
	Message string `json:"message"`
	// Data はInvalidInputの場合の検証エラー一覧。
	Data []Violation `json:"data,omitempty"`
}

// ToResponse はエラーをステータスコードとレスポンスボディに変換する。
func ToResponse(err error) (int, Response) {
	var ae *Error
	if errors.As(err, &ae) {
		resp := Response{Message: ae.Message}
		if ae.Kind == InvalidInput {
			resp.Data = ae.Violations
		}
		return ae.Kind.HTTPStatus(), resp
	}
	return http.StatusInternalServerError, Response{Message: "An error occurred!"}
}
