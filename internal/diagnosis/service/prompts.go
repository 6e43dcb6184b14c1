package service

import (
	"fmt"
	"strings"
)

// Token budgets for the two prompt shapes.
const (
	freeMaxTokens     = 500
	detailedMaxTokens = 2000
)

const systemPrompt = "あなたは経験豊富な占い師です。スピリチュアルな言葉を使いながら、ポジティブで具体的なアドバイスを提供してください。"

func freePrompt(name, birthDate string) string {
	return fmt.Sprintf(`あなたは占い師です。以下の情報から、その人の運勢を占ってください:

名前: %s
生年月日: %s

以下の項目について、簡潔に占ってください:
- 総合運
- 恋愛運
- 仕事運
- 金運

各項目2-3文程度で、具体的なアドバイスを含めてください。
`, name, birthDate)
}

func detailedPrompt(name, birthDate string, categories []string, freeText string) string {
	return fmt.Sprintf(`名前: %s
生年月日: %s
占いを希望する分野: %s
具体的な悩み: %s

以下の内容で詳細な占い結果を生成してください:

1. 全体的な運勢の流れ
2. 選択された各分野の詳細な運勢
3. 具体的なアドバイスと行動指針
4. 開運のためのアクション
5. ラッキーアイテム・カラー

各項目について、具体的で実践的なアドバイスを含めて、詳しく説明してください。
`, name, birthDate, strings.Join(categories, ", "), freeText)
}
