package billing

import (
	"context"
	"testing"
)

func TestResolvePlanForPrice(t *testing.T) {
	repo := newMemoryRepository()
	repo.mappings["price_pro_monthly"] = "pro"

	plan, ok := resolvePlanForPrice(context.Background(), repo, "price_pro_monthly")
	if !ok || plan != "pro" {
		t.Fatalf("expected mapped price to resolve to pro, got %q (ok=%v)", plan, ok)
	}
}

func TestResolvePlanForPriceUnmapped(t *testing.T) {
	repo := newMemoryRepository()

	plan, ok := resolvePlanForPrice(context.Background(), repo, "price_unknown")
	if ok {
		t.Fatal("unmapped price must not resolve")
	}
	if plan != "free" {
		t.Fatalf("fallback plan must be free, got %q", plan)
	}
}

func TestResolvePlanForPriceEmpty(t *testing.T) {
	repo := newMemoryRepository()
	repo.mappings[""] = "pro"

	if _, ok := resolvePlanForPrice(context.Background(), repo, "   "); ok {
		t.Fatal("blank price id must not resolve")
	}
}
