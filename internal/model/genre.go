// Package model はドメインモデルを定義する。
package model

import "time"

// Genre はユーザーが定義するブックマークの分類を表す。
// 名前は同一ユーザー内で一意（バイト単位の完全一致）であり、作成後は変更されない。
type Genre struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}

// GenreWithCount はジャンルと所属ブックマーク数を結合したモデル。
// bookmarksテーブルのGROUP BY集計とLEFT JOINして取得される。
type GenreWithCount struct {
	Genre
	BookmarkCount int
}
