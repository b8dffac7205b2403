// Package validation は利用者の入力値を検証する。
//
// RESTとGraphQLの両方から同じ規則で呼び出す。
// 文字列長は前後の空白を除いた文字数で判定する。
package validation

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/nao1215/feedhub/pkg/apperr"
)

// MinTextLength はタイトル、本文、パスワードの最小文字数。
const MinTextLength = 5

// validate は共有のバリデータ。validator.Validateは並行利用に対して安全。
var validate = newValidator()

// newValidator は独自ルールを登録したバリデータを生成する。
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// trimmin は前後の空白を除いた文字数が指定値以上であることを検査する。
	if err := v.RegisterValidation("trimmin", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) >= n
	}); err != nil {
		panic(err)
	}
	return v
}

// postInput は投稿の入力規則。
type postInput struct {
	Title   string `validate:"trimmin=5"`
	Content string `validate:"trimmin=5"`
}

// postMessages は投稿の項目ごとのエラーメッセージ。
var postMessages = map[string]string{
	"Title":   "Title is invalid!",
	"Content": "Content is invalid!",
}

// signupInput はユーザー登録の入力規則。
type signupInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"trimmin=5"`
	Name     string `validate:"trimmin=1"`
}

// signupMessages はユーザー登録の項目ごとのエラーメッセージ。
var signupMessages = map[string]string{
	"Email":    "Email is not valid!",
	"Password": "Password is too short!",
	"Name":     "Name is required!",
}

// statusInput はステータス更新の入力規則。
type statusInput struct {
	Status string `validate:"trimmin=1"`
}

// statusMessages はステータス更新のエラーメッセージ。
var statusMessages = map[string]string{
	"Status": "Status is required!",
}

// Post はタイトルと本文を検証する。
func Post(title, content string) []apperr.Violation {
	return check(postInput{Title: title, Content: content}, postMessages)
}

// Signup はメールアドレス、パスワード、表示名を検証する。
func Signup(email, password, name string) []apperr.Violation {
	return check(signupInput{Email: strings.TrimSpace(email), Password: password, Name: name}, signupMessages)
}

// Status はステータス文字列を検証する。
func Status(status string) []apperr.Violation {
	return check(statusInput{Status: status}, statusMessages)
}

// NormalizeEmail はメールアドレスを比較用の形式にそろえる。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// check は構造体を検証し、失敗した項目のメッセージを項目の定義順に返す。
func check(input any, messages map[string]string) []apperr.Violation {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []apperr.Violation{{Message: "Invalid input."}}
	}

	violations := make([]apperr.Violation, 0, len(verrs))
	seen := make(map[string]bool, len(verrs))
	for _, fe := range verrs {
		if seen[fe.Field()] {
			continue
		}
		seen[fe.Field()] = true

		msg, ok := messages[fe.Field()]
		if !ok {
			msg = fe.Field() + " is invalid!"
		}
		violations = append(violations, apperr.Violation{Message: msg})
	}
	return violations
}
