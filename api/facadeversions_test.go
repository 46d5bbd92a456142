// Copyright 2014 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package api_test

import (
	"github.com/juju/collections/set"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/python-libjuju-sub000/api"
)

type facadeVersionSuite struct{}

var _ = gc.Suite(&facadeVersionSuite{})

func checkBestVersion(c *gc.C, desiredVersion, versions []int, expectedVersion int) {
	resultVersion := api.BestVersion(desiredVersion, versions)
	c.Check(resultVersion, gc.Equals, expectedVersion)
}

func (*facadeVersionSuite) TestBestVersionDesiredAvailable(c *gc.C) {
	checkBestVersion(c, []int{0}, []int{0, 1, 2}, 0)
	checkBestVersion(c, []int{0, 1}, []int{0, 1, 2}, 1)
	checkBestVersion(c, []int{0, 1, 2}, []int{0, 1, 2}, 2)
}

func (*facadeVersionSuite) TestBestVersionDesiredNewer(c *gc.C) {
	checkBestVersion(c, []int{1, 2, 3}, []int{0}, 0)
	checkBestVersion(c, []int{1, 2, 3}, []int{0, 1, 2}, 2)
}

func (*facadeVersionSuite) TestBestVersionDesiredGap(c *gc.C) {
	checkBestVersion(c, []int{1, 3}, []int{0, 1, 2}, 1)
	checkBestVersion(c, []int{6, 7, 8}, []int{1, 2, 3, 6, 7}, 7)
}

func (*facadeVersionSuite) TestBestVersionNoVersions(c *gc.C) {
	checkBestVersion(c, nil, []int{0, 1, 2}, 0)
	checkBestVersion(c, []int{1, 2}, nil, 0)
}

func (*facadeVersionSuite) TestSchemaSelection(c *gc.C) {
	for _, test := range []struct {
		serverVersion string
		series        string
	}{
		{"", "2.x"},
		{"2.9.42", "2.x"},
		{"2.9-rc1", "2.x"},
		{"3.0.0", "3.x"},
		{"3.4.2", "3.x"},
		{"4.0-beta1", "3.x"},
	} {
		series, err := api.SchemaSeries(test.serverVersion)
		c.Check(err, jc.ErrorIsNil, gc.Commentf("%q", test.serverVersion))
		c.Check(series, gc.Equals, test.series, gc.Commentf("%q", test.serverVersion))
	}

	_, err := api.SchemaSeries("three")
	c.Check(err, gc.ErrorMatches, `controller version "three": .*`)
}

func (*facadeVersionSuite) TestSchemasCoverTheSameFacades(c *gc.C) {
	old := set.NewStrings()
	current := set.NewStrings()
	for _, facade := range []string{"Admin", "AllWatcher", "Client", "Pinger"} {
		if len(api.FacadeVersionsFor("2.9.0", facade)) > 0 {
			old.Add(facade)
		}
		if len(api.FacadeVersionsFor("3.4.0", facade)) > 0 {
			current.Add(facade)
		}
		// Versions are never zero.
		c.Check(set.NewInts(api.FacadeVersionsFor("2.9.0", facade)...).Contains(0), jc.IsFalse)
		c.Check(set.NewInts(api.FacadeVersionsFor("3.4.0", facade)...).Contains(0), jc.IsFalse)
	}
	c.Check(old.SortedValues(), jc.DeepEquals, current.SortedValues())
	c.Check(current.Size(), gc.Equals, 4)
}
