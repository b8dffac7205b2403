// Package httpclient は外部エンドポイントへJSONをPOSTするクライアントを提供する。
//
// 投稿の変更通知をWebhookとして配信する際に使用する。
package httpclient
