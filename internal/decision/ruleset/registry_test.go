package ruleset

import (
	"context"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "underwriter/pkg/domain-errors"
)

// RegistrySuite covers hot-swap semantics: reload replaces the current
// snapshot atomically and never mutates a rule set a caller already holds.
type RegistrySuite struct {
	suite.Suite
	fsys     fstest.MapFS
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.fsys = fstest.MapFS{
		"rules/minimal.yaml": {Data: []byte(minimalDoc)},
		"rules/README.md":    {Data: []byte("ignored")},
	}
	var err error
	s.registry, err = NewRegistry(NewFSSource(s.fsys, "rules"))
	s.Require().NoError(err)
}

func (s *RegistrySuite) TestNewRegistryRequiresSource() {
	_, err := NewRegistry(nil)
	s.Error(err)
}

func (s *RegistrySuite) TestLoadAndGet() {
	snap, err := s.registry.Load(context.Background())
	s.Require().NoError(err)
	s.Equal(uint64(1), snap.Generation)
	s.Equal([]string{"minimal"}, s.registry.Names())

	rs, err := s.registry.Get("minimal")
	s.Require().NoError(err)
	s.Equal("1.0", rs.Version)

	info, err := s.registry.Info("minimal")
	s.Require().NoError(err)
	s.Equal(1, info.HardStops)
	s.Equal(1, info.Referrals)
	s.Equal(1, info.Acceptance)

	_, err = s.registry.Get("missing")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *RegistrySuite) TestReloadKeepsHeldSnapshot() {
	_, err := s.registry.Load(context.Background())
	s.Require().NoError(err)
	held, err := s.registry.Get("minimal")
	s.Require().NoError(err)

	s.fsys["rules/minimal.yaml"] = &fstest.MapFile{Data: []byte(strings.Replace(minimalDoc, `version: "1.0"`, `version: "2.0"`, 1))}
	snap, err := s.registry.Load(context.Background())
	s.Require().NoError(err)
	s.Equal(uint64(2), snap.Generation)

	current, err := s.registry.Get("minimal")
	s.Require().NoError(err)
	s.Equal("2.0", current.Version)
	s.Equal("1.0", held.Version, "in-flight holder keeps its snapshot")
	s.NotSame(held, current)
}

func (s *RegistrySuite) TestFailedReloadKeepsCurrent() {
	_, err := s.registry.Load(context.Background())
	s.Require().NoError(err)

	s.fsys["rules/broken.yaml"] = &fstest.MapFile{Data: []byte(strings.Replace(minimalDoc, "name: minimal", "name: broken\nbogus: true", 1))}
	_, err = s.registry.Load(context.Background())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConfig))

	s.Equal(uint64(1), s.registry.Current().Generation)
	s.Equal([]string{"minimal"}, s.registry.Names())
}

func (s *RegistrySuite) TestMixedCaseNamesAreLowercased() {
	s.fsys["rules/Standard.yaml"] = &fstest.MapFile{Data: []byte(strings.Replace(minimalDoc, "name: minimal", "name: Standard", 1))}
	_, err := s.registry.Load(context.Background())
	s.Require().NoError(err)
	s.Equal([]string{"minimal", "standard"}, s.registry.Names())

	for _, name := range []string{"standard", "Standard", " STANDARD "} {
		rs, err := s.registry.Get(name)
		s.Require().NoError(err, name)
		s.Equal("standard", rs.Name)
	}
}

func (s *RegistrySuite) TestNamesCollidingByCaseAreRejected() {
	s.fsys["rules/Minimal.json"] = &fstest.MapFile{Data: []byte(strings.Replace(minimalDoc, "name: minimal", "name: Minimal", 1))}
	_, err := s.registry.Load(context.Background())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConfig))
	s.Contains(err.Error(), "defined more than once")
}

func (s *RegistrySuite) TestLoadEmptySource() {
	reg, err := NewRegistry(NewFSSource(fstest.MapFS{"rules/.keep": {}}, "rules"))
	s.Require().NoError(err)
	_, err = reg.Load(context.Background())
	s.True(dErrors.HasCode(err, dErrors.CodeConfig))
}

func (s *RegistrySuite) TestReloadListener() {
	var seen []uint64
	reg, err := NewRegistry(NewFSSource(s.fsys, "rules"), WithReloadListener(func(_ context.Context, snap *Snapshot) {
		seen = append(seen, snap.Generation)
	}))
	s.Require().NoError(err)
	_, err = reg.Load(context.Background())
	s.Require().NoError(err)
	_, err = reg.Load(context.Background())
	s.Require().NoError(err)
	s.Equal([]uint64{1, 2}, seen)
}

func (s *RegistrySuite) TestConcurrentReadersDuringReload() {
	_, err := s.registry.Load(context.Background())
	s.Require().NoError(err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				rs, err := s.registry.Get("minimal")
				if err != nil || rs.Name != "minimal" {
					s.Fail("reader saw an incomplete snapshot")
					return
				}
			}
		}()
	}
	for i := 0; i < 5; i++ {
		_, err := s.registry.Load(context.Background())
		s.Require().NoError(err)
	}
	wg.Wait()
}

type fakeSubscriber struct {
	ch chan string
}

func (f *fakeSubscriber) Subscribe(context.Context) (<-chan string, error) {
	return f.ch, nil
}

func (s *RegistrySuite) TestWatchReloadsOnNotification() {
	_, err := s.registry.Load(context.Background())
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := &fakeSubscriber{ch: make(chan string)}
	done := make(chan error, 1)
	go func() { done <- s.registry.Watch(ctx, sub) }()

	sub.ch <- "minimal"
	s.Eventually(func() bool {
		return s.registry.Current().Generation == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	s.ErrorIs(<-done, context.Canceled)
}
