// Package miner searches for a PoW nonce across N worker goroutines,
// translated from original_source/src/node/miner.hpp/.cpp's
// CommonState/MinerWorker pair: the C++ design serializes job handoff
// through a mutex-guarded CommonData plus a condition variable and an
// atomic version counter so workers can cheaply notice a job change
// without re-locking on every hash attempt. Go's sync.Cond plays the same
// role as std::condition_variable_any; the version counter is a plain
// uint64 guarded by the same mutex, and a worker mid-hash-loop reads it
// only once every checkEvery attempts, without a channel send per nonce
// attempt.
package miner

import (
	"runtime"
	"sync"

	"github.com/lk-network/lkchain/consensus/pow"
	"github.com/lk-network/lkchain/core/block"
	"github.com/lk-network/lkchain/log"
)

type task int

const (
	taskNone task = iota
	taskFindNonce
	taskExit
)

// jobData is CommonData: the block template and its target complexity, or
// nothing while idle.
type jobData struct {
	task       task
	blockMut   *block.MutableBlock
	complexity pow.Complexity
}

// Handler receives a fully-nonced block once a worker finds one.
type Handler func(*block.ImmutableBlock)

// Miner owns the shared job slot and the worker pool reading from it.
type Miner struct {
	mu      sync.Mutex
	cond    *sync.Cond
	version uint64
	data    jobData
	handler Handler

	wg sync.WaitGroup
}

// Config mirrors original_source's config.get<size_t>("miner.threads"):
// Threads == 0 means "use hardware concurrency".
type Config struct {
	Threads int
}

func New(cfg Config, handler Handler) *Miner {
	m := &Miner{handler: handler}
	m.cond = sync.NewCond(&m.mu)

	n := cfg.Threads
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	log.Info("miner: starting workers", "count", n)
	for i := 0; i < n; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}
	return m
}

// FindNonce installs a new job, bumping the version so every worker
// currently hashing notices and restarts on the new block/complexity.
func (m *Miner) FindNonce(blockMut *block.MutableBlock, complexity pow.Complexity) {
	m.mu.Lock()
	m.version++
	m.data = jobData{task: taskFindNonce, blockMut: blockMut, complexity: complexity}
	m.mu.Unlock()
	m.cond.Broadcast()
}

// DropJob cancels the in-flight job without installing a new one.
func (m *Miner) DropJob() {
	m.mu.Lock()
	m.version++
	m.data = jobData{task: taskNone}
	m.mu.Unlock()
	m.cond.Broadcast()
}

// Stop tells every worker to exit and waits for them to return.
func (m *Miner) Stop() {
	m.mu.Lock()
	m.version++
	m.data = jobData{task: taskExit}
	m.mu.Unlock()
	m.cond.Broadcast()
	m.wg.Wait()
}

// waitAndReadNewData blocks until the version differs from lastRead,
// mirroring CommonState::waitAndReadNewData.
func (m *Miner) waitAndReadNewData(lastRead uint64) (uint64, jobData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.version == lastRead {
		m.cond.Wait()
	}
	return m.version, m.data
}

// callHandlerAndDrop fires the handler after atomically dropping the job,
// guarding against two workers racing to report the same nonce.
func (m *Miner) callHandlerAndDrop(b *block.ImmutableBlock) {
	m.mu.Lock()
	if m.data.task != taskFindNonce {
		m.mu.Unlock()
		return
	}
	m.version++
	m.data = jobData{task: taskNone}
	m.mu.Unlock()
	m.cond.Broadcast()

	m.handler(b)
}

func (m *Miner) worker(id int) {
	defer m.wg.Done()
	var lastRead uint64
	var nonceCounter uint64 = uint64(id) << 48 // spread each worker's search space apart

	for {
		version, data := m.waitAndReadNewData(lastRead)
		lastRead = version

		switch data.task {
		case taskExit:
			return
		case taskNone:
			continue
		case taskFindNonce:
			if found, ib := m.hashLoop(lastRead, data, &nonceCounter); found {
				m.callHandlerAndDrop(ib)
			}
		}
	}
}

// hashLoop repeatedly increments the nonce and re-hashes, polling the
// shared version between attempts so a job change or Stop is noticed
// without a per-attempt lock/unlock round trip — the cooperative
// cancellation original_source achieves via its own version counter.
// checkEvery bounds how many hash attempts a worker makes between version
// checks, trading a little cancellation latency for avoiding a mutex round
// trip on every single nonce attempt.
const checkEvery = 4096

func (m *Miner) hashLoop(myVersion uint64, data jobData, nonceCounter *uint64) (bool, *block.ImmutableBlock) {
	target := data.complexity.Comparer()
	// Each worker stamps nonces onto its own copy of the template: data.blockMut
	// is shared across every worker racing on the same job, and FreezeMutable
	// reads the fields it points at, so mutating it in place here would race
	// with every other worker doing the same.
	myBlock := data.blockMut.Clone()
	for i := 0; ; i++ {
		if i%checkEvery == 0 && m.currentVersion() != myVersion {
			return false, nil
		}
		*nonceCounter++
		myBlock.SetNonce(*nonceCounter)
		ib := block.FreezeMutable(myBlock)

		comparer := ib.GetHash()
		if lessOrEqual(comparer[:], target[:]) {
			return true, ib
		}
	}
}

func (m *Miner) currentVersion() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

func lessOrEqual(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return true
}
