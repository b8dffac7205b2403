// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// JWTの発行と検証、匿名リクエストを拒否しない認証ゲート、リクエストログ、
// パニックリカバリ、CORS設定を含む。
package middleware
