package translate

import (
	"testing"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
	"github.com/nextlevelbuilder/oilengine/pkg/protocol"
)

func idPtr(n uint) *uint { return &n }

func TestTranslate_GoToIsBackend(t *testing.T) {
	rc := &ResolvedCommand{Cmd: &ast.Command{Kind: ast.CmdGoTo, URL: "https://example.com"}}
	tr, err := Translate(rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Destination != ToBackend || tr.Backend.Kind != ActionNavigate || tr.Backend.URL != "https://example.com" {
		t.Errorf("got %+v", tr)
	}
}

func TestTranslate_ClickIsScannerAndPreservesOptions(t *testing.T) {
	cmd := &ast.Command{Kind: ast.CmdClick, Click: ast.ClickOptions{
		Modifiers: map[ast.Modifier]bool{ast.ModCtrl: true}, Button: ast.ButtonRight, Double: true, Force: true,
	}}
	rc := &ResolvedCommand{Cmd: cmd, TargetID: idPtr(7)}
	tr, err := Translate(rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Destination != ToScanner || tr.Scanner.Action != protocol.ActionClick {
		t.Fatalf("got %+v", tr)
	}
	if tr.Scanner.Fields["id"] != uint(7) {
		t.Errorf("expected id=7, got %v", tr.Scanner.Fields["id"])
	}
	if tr.Scanner.Fields["button"] != "right" || tr.Scanner.Fields["double"] != true || tr.Scanner.Fields["force"] != true {
		t.Errorf("click options not preserved: %+v", tr.Scanner.Fields)
	}
}

func TestTranslate_ClickWithoutResolvedIDIsUnsupported(t *testing.T) {
	rc := &ResolvedCommand{Cmd: &ast.Command{Kind: ast.CmdClick}}
	_, err := Translate(rc)
	if err == nil {
		t.Fatalf("expected an error when target id is unresolved")
	}
}

func TestTranslate_ScreenshotIsBackend(t *testing.T) {
	rc := &ResolvedCommand{Cmd: &ast.Command{Kind: ast.CmdScreenshot}}
	tr, err := Translate(rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Destination != ToBackend || tr.Backend.Kind != ActionScreenshot {
		t.Errorf("got %+v", tr)
	}
}

func TestTranslate_PDFIsBackend(t *testing.T) {
	rc := &ResolvedCommand{Cmd: &ast.Command{Kind: ast.CmdPDF}}
	tr, err := Translate(rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Destination != ToBackend || tr.Backend.Kind != ActionPDF {
		t.Errorf("got %+v", tr)
	}
}

func TestTranslate_CookiesIsBackend(t *testing.T) {
	rc := &ResolvedCommand{Cmd: &ast.Command{Kind: ast.CmdCookies, Subcommand: ast.SubcommandTag{Group: "cookies", Action: "list"}}}
	tr, err := Translate(rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Destination != ToBackend || tr.Backend.Kind != ActionCookies {
		t.Errorf("got %+v", tr)
	}
}

func TestTranslate_StorageIsScanner(t *testing.T) {
	rc := &ResolvedCommand{Cmd: &ast.Command{Kind: ast.CmdStorage, Subcommand: ast.SubcommandTag{Group: "storage", Action: "get", Args: map[string]string{"key": "token"}}}}
	tr, err := Translate(rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Destination != ToScanner || tr.Scanner.Action != protocol.ActionStorage {
		t.Fatalf("got %+v", tr)
	}
	if tr.Scanner.Fields["key"] != "token" {
		t.Errorf("expected storage args preserved, got %+v", tr.Scanner.Fields)
	}
}

func TestTranslate_WaitVisibleRequiresTargetID(t *testing.T) {
	cmd := &ast.Command{Kind: ast.CmdWait, Wait: ast.WaitCondition{Kind: ast.WaitVisible}}
	rc := &ResolvedCommand{Cmd: cmd}
	_, err := Translate(rc)
	if err == nil {
		t.Fatalf("expected error when wait visible has no resolved target id")
	}
}

func TestTranslate_WaitLoadNeedsNoTarget(t *testing.T) {
	cmd := &ast.Command{Kind: ast.CmdWait, Wait: ast.WaitCondition{Kind: ast.WaitLoad}}
	rc := &ResolvedCommand{Cmd: cmd}
	tr, err := Translate(rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Scanner.Fields["condition"] != "load" {
		t.Errorf("got %+v", tr.Scanner.Fields)
	}
}

func TestTranslate_IntentLevelCommandIsUnsupported(t *testing.T) {
	rc := &ResolvedCommand{Cmd: &ast.Command{Kind: ast.CmdLogin}}
	_, err := Translate(rc)
	if err == nil {
		t.Fatalf("expected login to be unsupported directly at the translator")
	}
}
