package knowledge

import "testing"

func TestKnowledgeAccessTokenRoundTrip(t *testing.T) {
	k := New()
	if k.APIEndpointAccessToken() != nil {
		t.Fatalf("expected no token initially")
	}
	k.UpdateAccessToken("tok-1")
	tok := k.APIEndpointAccessToken()
	if tok == nil || *tok != "tok-1" {
		t.Fatalf("expected token 'tok-1', got %v", tok)
	}
}

func TestKnowledgeNewClientsQueueDrains(t *testing.T) {
	k := New()
	c := &UnmanagedCompin{AppName: "a", CompName: "client", ID: "u1"}
	k.PushNewClient(c)
	k.PushNewClient(c)

	first := k.ListNewClients()
	if len(first) != 2 {
		t.Fatalf("expected 2 queued clients, got %d", len(first))
	}
	second := k.ListNewClients()
	if len(second) != 0 {
		t.Fatalf("expected queue to be drained after read, got %d", len(second))
	}
}

func TestKnowledgeThereAreApplications(t *testing.T) {
	k := New()
	if k.ThereAreApplications() {
		t.Fatalf("expected no applications initially")
	}
	k.AddApplication(NewApplication("app"))
	if !k.ThereAreApplications() {
		t.Fatalf("expected an application to be present")
	}
	k.RemoveApplication("app")
	if k.ThereAreApplications() {
		t.Fatalf("expected application to be removed")
	}
}
