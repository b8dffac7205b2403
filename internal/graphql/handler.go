package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/location"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/nao1215/feedhub/internal/account"
	"github.com/nao1215/feedhub/internal/feed"
	"github.com/nao1215/feedhub/internal/store"
	"github.com/nao1215/feedhub/pkg/apperr"
)

// Handler はGraphQLリクエストを実行する。
type Handler struct {
	schema   graphql.Schema
	accounts *account.Service
	feeds    *feed.Service
	users    store.UserStore
	logger   *slog.Logger
}

// NewHandler は新しいHandlerを生成する。
func NewHandler(accounts *account.Service, feeds *feed.Service, users store.UserStore, logger *slog.Logger) (*Handler, error) {
	h := &Handler{
		accounts: accounts,
		feeds:    feeds,
		users:    users,
		logger:   logger,
	}
	schema, err := h.newSchema()
	if err != nil {
		return nil, fmt.Errorf("GraphQLスキーマの生成に失敗: %w", err)
	}
	h.schema = schema
	return h, nil
}

// Request はGraphQLリクエスト。
type Request struct {
	// Query はクエリ文字列。
	Query string `json:"query"`
	// Variables は変数。
	Variables map[string]any `json:"variables"`
	// OperationName は実行する操作名。
	OperationName string `json:"operationName"`
}

// Error はレスポンスに含めるエラー。
// statusとdataは拡張フィールドと同じ値をトップレベルにも設定する。
type Error struct {
	Message    string                    `json:"message"`
	Locations  []location.SourceLocation `json:"locations,omitempty"`
	Path       []any                     `json:"path,omitempty"`
	Status     int                       `json:"status"`
	Data       any                       `json:"data,omitempty"`
	Extensions map[string]any            `json:"extensions,omitempty"`
}

// Response はGraphQLレスポンス。
type Response struct {
	Data   any     `json:"data"`
	Errors []Error `json:"errors,omitempty"`
}

// Execute はリクエストを実行する。ctxにはIdentityが設定されている必要がある。
func (h *Handler) Execute(ctx context.Context, req Request) *Response {
	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        ctx,
	})

	resp := &Response{Data: result.Data}
	for _, fe := range result.Errors {
		resp.Errors = append(resp.Errors, formatError(fe))
	}
	return resp
}

// formatError は実行エラーをレスポンス用のエラーに変換する。
// 拡張フィールドを持たないエラーはクエリ自体の誤りとして400にする。
func formatError(fe gqlerrors.FormattedError) Error {
	e := Error{
		Message:    fe.Message,
		Locations:  fe.Locations,
		Path:       fe.Path,
		Status:     http.StatusBadRequest,
		Extensions: fe.Extensions,
	}
	if status, ok := fe.Extensions["status"].(int); ok {
		e.Status = status
	}
	if data, ok := fe.Extensions["data"]; ok {
		e.Data = data
	}
	if e.Extensions == nil {
		e.Extensions = map[string]any{"status": e.Status}
	}
	return e
}

// Handle はPOSTとGETの/graphqlを処理するGinハンドラを返す。
func (h *Handler) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := parseRequest(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, apperr.Response{Message: err.Error()})
			return
		}
		if req.Query == "" {
			c.JSON(http.StatusBadRequest, apperr.Response{Message: "Must provide query string."})
			return
		}
		if c.Request.Method == http.MethodGet && isMutation(req.Query, req.OperationName) {
			c.Header("Allow", http.MethodPost)
			c.JSON(http.StatusMethodNotAllowed, apperr.Response{Message: "Can only perform a mutation operation from a POST request."})
			return
		}
		c.JSON(http.StatusOK, h.Execute(c.Request.Context(), req))
	}
}

// parseRequest はPOSTのJSONボディまたはGETのクエリパラメータからリクエストを読み取る。
func parseRequest(c *gin.Context) (Request, error) {
	var req Request
	if c.Request.Method == http.MethodGet {
		req.Query = c.Query("query")
		req.OperationName = c.Query("operationName")
		if vars := c.Query("variables"); vars != "" {
			if err := json.Unmarshal([]byte(vars), &req.Variables); err != nil {
				return req, errors.New("Variables are invalid JSON.")
			}
		}
		return req, nil
	}
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		return req, errors.New("POST body sent invalid JSON.")
	}
	return req, nil
}

// isMutation は文書のうち実行される操作がmutationかを返す。
// 構文エラーは実行時のエラーとして返すため、ここではfalseにする。
func isMutation(query, operationName string) bool {
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	if err != nil {
		return false
	}
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		if operationName == "" || (op.Name != nil && op.Name.Value == operationName) {
			return op.Operation == ast.OperationTypeMutation
		}
	}
	return false
}
