package repository

import (
	"testing"
)

func TestBuildKeywordLikeConditionByDialect(t *testing.T) {
	condition, argCount := buildKeywordLikeConditionByDialect("sqlite", []string{"code", " ", "referred_email"})
	if argCount != 2 {
		t.Fatalf("arg count want 2 got %d", argCount)
	}
	if condition != `code LIKE ? ESCAPE '\' OR referred_email LIKE ? ESCAPE '\'` {
		t.Fatalf("unexpected sqlite condition: %s", condition)
	}

	condition, _ = buildKeywordLikeConditionByDialect("postgres", []string{"code"})
	if condition != `code ILIKE ? ESCAPE '\'` {
		t.Fatalf("unexpected postgres condition: %s", condition)
	}
}

func TestDialectNameDefaultsToSQLite(t *testing.T) {
	if got := dbDialectName(nil); got != "sqlite" {
		t.Fatalf("nil db dialect want sqlite got %s", got)
	}
}

func TestEscapeLikeKeyword(t *testing.T) {
	if got := escapeLikeKeyword(" 50%_off "); got != `%50\%\_off%` {
		t.Fatalf("unexpected escaped keyword: %s", got)
	}
}

func TestRepeatLikeArgs(t *testing.T) {
	args := repeatLikeArgs("%test%", 3)
	if len(args) != 3 {
		t.Fatalf("args len want 3 got %d", len(args))
	}
	for idx, arg := range args {
		if arg != "%test%" {
			t.Fatalf("args[%d] want %%test%% got %v", idx, arg)
		}
	}
}
