package pipeline

import (
	"strings"
	"testing"
)

func TestValidateComponent_CleanCode(t *testing.T) {
	result := ValidateComponent(testComponentCode)
	if !result.IsValid {
		t.Fatalf("expected valid, got diagnostics: %+v", result.Diagnostics)
	}
}

func TestValidateComponent_BrokenCode(t *testing.T) {
	result := ValidateComponent(brokenComponentCode)
	if result.IsValid {
		t.Fatal("expected validation to fail")
	}

	var sawEval, sawUndeclared bool
	for _, d := range result.Diagnostics {
		if strings.Contains(d.Message, "eval(") {
			sawEval = true
		}
		if strings.Contains(d.Message, "grandTotal") {
			sawUndeclared = true
		}
	}
	if !sawEval {
		t.Error("eval( not flagged")
	}
	if !sawUndeclared {
		t.Error("undeclared identifier grandTotal not flagged")
	}
}

func TestValidateComponent_MissingDefaultExport(t *testing.T) {
	code := `const Widget = () => <p>hi</p>;`
	result := ValidateComponent(code)
	if result.IsValid {
		t.Fatal("expected validation to fail")
	}
	found := false
	for _, d := range result.Diagnostics {
		if strings.Contains(d.Message, "default") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing default export not flagged: %+v", result.Diagnostics)
	}
}

func TestValidateComponent_UnlabeledInput(t *testing.T) {
	code := `const Widget = () => {
  const [value, setValue] = React.useState("");
  return <input type="text" value={value} onChange={(e) => setValue(e.target.value)} />;
};
export default Widget;
`
	result := ValidateComponent(code)
	if result.IsValid {
		t.Fatal("expected validation to fail")
	}
	found := false
	for _, d := range result.Diagnostics {
		if strings.Contains(d.Message, "aria-label") {
			found = true
		}
	}
	if !found {
		t.Errorf("unlabeled input not flagged: %+v", result.Diagnostics)
	}
}

func TestValidateComponent_ImgWithoutAlt(t *testing.T) {
	code := `const Widget = () => <div><img src="chart.png" /></div>;
export default Widget;
`
	result := ValidateComponent(code)
	if result.IsValid {
		t.Fatal("expected validation to fail")
	}
	found := false
	for _, d := range result.Diagnostics {
		if strings.Contains(d.Message, "alt") {
			found = true
		}
	}
	if !found {
		t.Errorf("img without alt not flagged: %+v", result.Diagnostics)
	}
}
