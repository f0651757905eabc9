package model

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile(t *testing.T) {
	f := File{Name: filepath.Join("data", "ttbar", "ttbar_1.mpk")}

	t.Run("BaseName strips directory and extension", func(t *testing.T) {
		assert.Equal(t, "ttbar_1", f.BaseName())
	})

	t.Run("DirName keeps trailing separator", func(t *testing.T) {
		assert.Equal(t, filepath.Join("data", "ttbar")+string(filepath.Separator), f.DirName())
	})

	t.Run("BaseName of a dotfile keeps the name", func(t *testing.T) {
		assert.Equal(t, ".hidden", File{Name: ".hidden"}.BaseName())
	})
}

func TestNewDataset(t *testing.T) {
	t.Run("Data datasets default to Nature generator", func(t *testing.T) {
		d := NewDataset("SingleMuon", "", ProcessData)
		assert.False(t, d.IsMC())
		assert.Equal(t, GeneratorNature, d.Generator())
	})

	t.Run("Simulation keeps the given generator", func(t *testing.T) {
		d := NewDataset("ttbar", "MadGraph", "Top", "TTbar")
		assert.True(t, d.IsMC())
		assert.Equal(t, Generator("MadGraph"), d.Generator())
		assert.Equal(t, Process("TTbar"), d.Process())
		assert.True(t, d.TestProcess("Top"))
		assert.False(t, d.TestProcess(ProcessData))
		assert.Equal(t, []Process{"Top", "TTbar"}, d.ProcessCodes())
	})

	t.Run("Missing codes fall back to Undefined", func(t *testing.T) {
		d := NewDataset("x", "")
		assert.Equal(t, ProcessUndefined, d.Process())
		assert.Equal(t, GeneratorUndefined, d.Generator())
	})
}

func TestDatasetFlags(t *testing.T) {
	d := NewDataset("ttbar", "", "TTbar")

	t.Run("SetFlag rejects duplicates", func(t *testing.T) {
		require.NoError(t, d.SetFlag("syst"))
		assert.Error(t, d.SetFlag("syst"))
		assert.True(t, d.TestFlag("syst"))
	})

	t.Run("Flags are sorted", func(t *testing.T) {
		require.NoError(t, d.SetFlag("alpha"))
		assert.Equal(t, []string{"alpha", "syst"}, d.Flags())
	})

	t.Run("UnsetFlag clears the flag", func(t *testing.T) {
		d.UnsetFlag("syst")
		assert.False(t, d.TestFlag("syst"))
		d.UnsetFlag("never-set")
	})
}

func TestDatasetCopiesAreIndependent(t *testing.T) {
	a := NewDataset("ttbar", "MadGraph", "TTbar")
	require.NoError(t, a.SetFlag("syst"))
	a.AddFile(File{Name: "a.mpk"})

	t.Run("SetFlag on a copy leaves the original alone", func(t *testing.T) {
		b := a
		require.NoError(t, b.SetFlag("x"))
		assert.True(t, b.TestFlag("x"))
		assert.False(t, a.TestFlag("x"))
	})

	t.Run("UnsetFlag on a copy leaves the original alone", func(t *testing.T) {
		b := a
		b.UnsetFlag("syst")
		assert.False(t, b.TestFlag("syst"))
		assert.True(t, a.TestFlag("syst"))
	})

	t.Run("AddFile on copies never overwrites a sibling", func(t *testing.T) {
		b := a
		c := a
		b.AddFile(File{Name: "b.mpk"})
		c.AddFile(File{Name: "c.mpk"})

		assert.Len(t, a.Files(), 1)
		assert.Equal(t, "b.mpk", b.Files()[1].Name)
		assert.Equal(t, "c.mpk", c.Files()[1].Name)
	})
}

func TestDatasetAtomize(t *testing.T) {
	d := NewDataset("ttbar", "MadGraph", "TTbar")
	require.NoError(t, d.SetFlag("syst"))
	d.AddFile(File{Name: "a.mpk", CrossSection: 831.76, EventsProcessed: 100})
	d.AddFile(File{Name: "b.mpk", CrossSection: 831.76, EventsProcessed: 200, MeanWeight: 0.5})
	d.AddFile(File{Name: "c.mpk", CrossSection: 831.76, EventsProcessed: 300})

	atoms := d.Atomize()

	t.Run("One dataset per file in order", func(t *testing.T) {
		require.Len(t, atoms, 3)
		for i, name := range []string{"a.mpk", "b.mpk", "c.mpk"} {
			assert.True(t, atoms[i].IsAtomic())
			assert.Equal(t, name, atoms[i].Files()[0].Name)
		}
		assert.False(t, d.IsAtomic())
	})

	t.Run("Atoms carry the parent metadata", func(t *testing.T) {
		for _, atom := range atoms {
			assert.Equal(t, "ttbar", atom.ID)
			assert.Equal(t, Process("TTbar"), atom.Process())
			assert.Equal(t, Generator("MadGraph"), atom.Generator())
			assert.True(t, atom.TestFlag("syst"))
		}
	})

	t.Run("Mean weight defaults to one", func(t *testing.T) {
		assert.Equal(t, 1.0, atoms[0].Files()[0].MeanWeight)
		assert.Equal(t, 0.5, atoms[1].Files()[0].MeanWeight)
	})

	t.Run("Atoms do not share flags with the parent", func(t *testing.T) {
		atoms[0].UnsetFlag("syst")
		assert.True(t, d.TestFlag("syst"))
		assert.True(t, atoms[1].TestFlag("syst"))
	})

	t.Run("CopyParameters drops the files", func(t *testing.T) {
		c := d.CopyParameters()
		assert.Empty(t, c.Files())
		assert.Equal(t, d.ProcessCodes(), c.ProcessCodes())
	})

	t.Run("String describes atomic and composite datasets", func(t *testing.T) {
		assert.Equal(t, "ttbar:b", atoms[1].String())
		assert.Equal(t, "ttbar (3 files)", d.String())
	})
}
