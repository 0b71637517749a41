package cache

import (
	"testing"

	"clamflow/models"
)

func TestGradeCacheFiltersAndInvalidates(t *testing.T) {
	c := NewGradeCache()
	if _, ok := c.Get(""); ok {
		t.Fatalf("expected empty cache miss")
	}
	c.Set([]models.ProductGrade{
		{Code: "B", ProductType: models.Meat},
		{Code: "A", ProductType: models.ShellOn},
		{Code: "A", ProductType: models.Meat},
	})

	meat, ok := c.Get(models.Meat)
	if !ok || len(meat) != 2 || meat[0].Code != "A" {
		t.Fatalf("unexpected meat grades %+v", meat)
	}
	all, _ := c.Get("")
	if len(all) != 3 || all[0].ProductType != models.ShellOn {
		t.Fatalf("expected shell-on first, got %+v", all)
	}

	c.Invalidate()
	if _, ok := c.Get(models.Meat); ok {
		t.Fatalf("expected miss after invalidate")
	}
}

func TestSessionCacheDeleteOperator(t *testing.T) {
	c := NewSessionCache()
	c.Add(models.Session{ID: "a", OperatorID: 1})
	c.Add(models.Session{ID: "b", OperatorID: 1})
	c.Add(models.Session{ID: "c", OperatorID: 2})

	c.DeleteOperator(1)
	if _, ok := c.Find("a"); ok {
		t.Fatalf("expected session a evicted")
	}
	if _, ok := c.Find("c"); !ok {
		t.Fatalf("expected session c kept")
	}
}

func TestRbacRolesCacheCodes(t *testing.T) {
	c := NewRbacRolesCache()
	c.Add(Resource{Code: "LOTS_VIEW", Role: "operator", Method: "GET", Pattern: "/api/lots"})
	c.Add(Resource{Code: "LOTS_VIEW", Role: "quality", Method: "GET", Pattern: "/api/lots"})
	c.Add(Resource{Code: "LOT_CREATE", Role: "operator", Method: "POST", Pattern: "/api/lots"})

	if got := c.Codes(); len(got) != 2 || got[0] != "LOTS_VIEW" {
		t.Fatalf("unexpected codes %v", got)
	}
	if got := c.ResourcesFor([]string{"operator"}); len(got) != 2 {
		t.Fatalf("expected 2 operator resources, got %d", len(got))
	}
}
