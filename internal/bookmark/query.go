package bookmark

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/takumi/shiori/internal/model"
)

// ParseListOptions はクエリ文字列からブックマーク一覧のフィルタ条件を組み立てる。
// 未指定のパラメータはフィルタなしとして扱う。
//   - genreId: ジャンルIDの完全一致
//   - search:  title / description / url の部分一致（大文字小文字を区別しない）
//   - isRead:  "true" / "false" のみ許可。それ以外はINVALID_INPUTエラー。
//   - limit:   0以上の整数のみ許可。0は無制限。負数や数値以外はINVALID_INPUTエラー。
func ParseListOptions(query url.Values) (model.BookmarkListOptions, error) {
	opts := model.BookmarkListOptions{
		GenreID: query.Get("genreId"),
		Search:  query.Get("search"),
	}

	if raw := query.Get("isRead"); raw != "" {
		switch raw {
		case "true":
			v := true
			opts.IsRead = &v
		case "false":
			v := false
			opts.IsRead = &v
		default:
			return model.BookmarkListOptions{}, model.NewInvalidInputError(
				fmt.Sprintf("isReadには true または false を指定してください: %q", raw))
		}
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return model.BookmarkListOptions{}, model.NewInvalidInputError(
				fmt.Sprintf("limitには0以上の整数を指定してください: %q", raw))
		}
		opts.Limit = limit
	}

	return opts, nil
}
