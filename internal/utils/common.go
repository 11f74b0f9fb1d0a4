package utils

import (
	"strings"

	"github.com/google/uuid"
)

// ShortID 生成8位短标识，用于输出文件命名
func ShortID() string {
	id := uuid.New().String()
	return strings.ReplaceAll(id, "-", "")[:8]
}

// RemoveControlCharacters 移除控制字符
func RemoveControlCharacters(text string) string {
	// 移除常见的控制字符，但保留换行符和制表符
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, text)
}
