package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilitiesIncludeBaseSet(t *testing.T) {
	for _, r := range []Role{RoleDeveloper, RoleDesigner, RoleTester, RoleManager, Role("visitor")} {
		caps := Capabilities(r)
		for _, c := range baseCapabilities {
			assert.True(t, caps[c], "%s lacks %s", r, c)
		}
	}
	assert.Len(t, Capabilities(Role("visitor")), len(baseCapabilities))
}

func TestRoleSpecificCapabilities(t *testing.T) {
	cases := []struct {
		role Role
		cap  Capability
		want bool
	}{
		{RoleDeveloper, CapGenerateCode, true},
		{RoleDeveloper, CapApproveScenario, false},
		{RoleDesigner, CapUploadAsset, true},
		{RoleDesigner, CapRunTest, false},
		{RoleTester, CapRunTest, true},
		{RoleTester, CapAssignBugsToDeveloper, true},
		{RoleTester, CapEditLogic, false},
		{RoleManager, CapApproveScenario, true},
		{RoleManager, CapGenerateCode, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Can(tc.role, tc.cap), "%s/%s", tc.role, tc.cap)
		assert.Equal(t, tc.want, Capabilities(tc.role)[tc.cap], "%s/%s", tc.role, tc.cap)
	}
}

func TestCapabilitiesReturnsCopy(t *testing.T) {
	caps := Capabilities(RoleTester)
	caps[CapApproveScenario] = true
	assert.False(t, Can(RoleTester, CapApproveScenario))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Manager ")
	require.NoError(t, err)
	assert.Equal(t, RoleManager, r)

	_, err = ParseRole("admin")
	assert.Error(t, err)
}

func TestUserCan(t *testing.T) {
	dev := &User{Username: "ann", Role: RoleDeveloper, IsActive: true}
	assert.True(t, dev.IsDeveloper())

	dev.IsActive = false
	assert.False(t, dev.Can(CapLogin))

	var nobody *User
	assert.False(t, nobody.Can(CapLogin))

	tester := &User{Username: "tom", Role: RoleTester, IsActive: true}
	assert.False(t, tester.IsDeveloper())
}
