package openai_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/kart-io/sentinel-docqa/pkg/llm"
	_ "github.com/kart-io/sentinel-docqa/pkg/llm/openai"
)

// 演示如何创建 OpenAI 兼容的 Embedding 供应商。
func ExampleNewProvider_basic() {
	provider, err := llm.NewEmbeddingProvider("openai", map[string]any{
		"api_key": "your-api-key-here",
		"model":   "text-embedding-3-small",
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("供应商名称:", provider.Name())
	// Output: 供应商名称: openai
}

// 演示如何通过兼容接口（如本地网关）生成向量。
func ExampleProvider_EmbedSingle() {
	if os.Getenv("OPENAI_API_KEY") == "" {
		fmt.Println("跳过示例：需要设置 OPENAI_API_KEY 环境变量")
		return
	}

	provider, err := llm.NewEmbeddingProvider("openai", map[string]any{
		"api_key": os.Getenv("OPENAI_API_KEY"),
	})
	if err != nil {
		log.Fatal(err)
	}

	vec, err := provider.EmbedSingle(context.Background(), "Where are invoices stored?")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("向量维度:", len(vec))
}
