package results

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chattigo/autobot/model"
)

func TestDisplayFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "tests/agente/test_login_agente.py", want: "Login"},
		{in: "tests/agente/test_outbound.py", want: "Outbound"},
		{in: "test_.py", want: "test_.py"},
		{in: "checks.py", want: "Checks"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, DisplayFileName(tt.in))
		})
	}
}

func TestNames(t *testing.T) {
	names := DefaultNames()
	require.Equal(t, "Chat - Mail", names.File("tests/agente/test_inbound_email.py"))
	require.Equal(t, "Login", names.File("tests/agente/test_login_agente.py"))
	require.Equal(t, "Agent login succeeds", names.Case("test_valid_login"))
	require.Equal(t, "test_unmapped", names.Case("test_unmapped"))

	merged := names.Merge(Names{Cases: map[string]string{"test_valid_login": "Login OK"}})
	require.Equal(t, "Login OK", merged.Case("test_valid_login"))
	require.Equal(t, "Agent logout", merged.Case("test_logout_agente"))
	require.Equal(t, "Agent login succeeds", names.Case("test_valid_login"), "merge must not mutate the receiver")
}

func TestGroup(t *testing.T) {
	mk := func(raw string) model.TestCaseResult {
		return model.TestCaseResult{NodeID: model.ParseNodeID(raw), Outcome: model.OutcomePassed}
	}
	cases := []model.TestCaseResult{
		mk("tests/b.py::test_one"),
		mk("tests/a.py::TestX::test_two"),
		mk("tests/b.py::TestY::test_three"),
		mk("tests/a.py::test_four"),
		mk("tests/b.py::test_five"),
	}

	groups := Group(cases, Names{})
	require.Len(t, groups, 2)

	require.Equal(t, "tests/b.py", groups[0].Path)
	require.Equal(t, "B", groups[0].DisplayName)
	require.Len(t, groups[0].Classes, 2)
	require.Equal(t, model.NoClass, groups[0].Classes[0].Name)
	require.Len(t, groups[0].Classes[0].Cases, 2)
	require.Equal(t, "test_one", groups[0].Classes[0].Cases[0].DisplayName)
	require.Equal(t, "test_five", groups[0].Classes[0].Cases[1].DisplayName)
	require.Equal(t, "TestY", groups[0].Classes[1].Name)

	var indexes []int
	for _, cg := range groups[0].Classes {
		for _, c := range cg.Cases {
			indexes = append(indexes, c.Index)
		}
	}
	require.Equal(t, []int{1, 2, 3}, indexes)

	require.Equal(t, "tests/a.py", groups[1].Path)
	require.Equal(t, "TestX", groups[1].Classes[0].Name)
	require.Equal(t, model.NoClass, groups[1].Classes[1].Name)

	require.Empty(t, Group(nil, Names{}))
}
