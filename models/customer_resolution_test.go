package models

import (
	"context"
	"testing"

	"github.com/mmdatafocus/marketplace_backend/utils"
)

// NOTE: These tests are intentionally DB-free. They pin the identity gate for
// customer resolution: only the token email can link an order to a registered
// customer; the request body never carries identity.

func TestCallerOwnsEmail(t *testing.T) {
	authed := utils.SetEmailInContext(context.Background(), "jo@buyer.test")
	authed = utils.SetUserIdInContext(authed, 42)

	userId, owns := callerOwnsEmail(authed, "jo@buyer.test")
	if !owns || userId != 42 {
		t.Fatalf("matching token email must own the order email, got userId=%d owns=%v", userId, owns)
	}

	// email comparison is case-insensitive
	if _, owns := callerOwnsEmail(authed, "JO@Buyer.Test"); !owns {
		t.Fatal("email match must ignore case")
	}

	// ordering for someone else falls through to the guest path
	if _, owns := callerOwnsEmail(authed, "pat@other.test"); owns {
		t.Fatal("mismatched email must not link to the caller")
	}

	// no token email at all (service callers, webhooks)
	if _, owns := callerOwnsEmail(context.Background(), "jo@buyer.test"); owns {
		t.Fatal("anonymous context must never own an email")
	}

	if _, owns := callerOwnsEmail(authed, ""); owns {
		t.Fatal("empty order email must never match")
	}
}
