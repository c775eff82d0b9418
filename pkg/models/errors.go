package models

import (
	"errors"
	"fmt"
	"strings"
)

// サービス全体で共有するエラー種別。ハンドラ層でHTTPステータスに変換されます。
var (
	// ErrModelsNotLoaded はモデルレジストリが未ロードの状態を示します（503相当）。
	ErrModelsNotLoaded = errors.New("models are not loaded")

	// ErrUnknownModel は未知のモデルロールが指定されたことを示します。
	ErrUnknownModel = errors.New("unknown model role")

	// ErrUnauthorized はAPIキーが無いか不正なことを示します（401相当）。
	ErrUnauthorized = errors.New("invalid or missing API key")

	// ErrRateLimited はレート制限超過を示します（429相当）。
	ErrRateLimited = errors.New("rate limit exceeded")
)

// ValidationError は入力検証の違反を列挙する型付きエラーです。
// フィールドごとに個別のエラーを投げるのではなく、1回の検証で全違反を保持します。
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Violations, "; "))
}

// IsValidationError は err が ValidationError かどうかを判定します。
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
