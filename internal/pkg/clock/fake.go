package clock

import (
	"container/heap"
	"sync"
	"time"
)

// Fake - управляемые часы для тестов. Задачи выполняются только внутри Advance,
// синхронно и в порядке времени срабатывания (при равенстве - в порядке постановки).
type Fake struct {
	mu    sync.Mutex
	now   time.Time
	seq   uint64
	queue taskQueue
}

// NewFake создает Fake, показывающие время start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now возвращает текущее виртуальное время.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AfterFunc ставит задачу в очередь на now+d.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTask{clock: f, at: f.now.Add(d), seq: f.seq, fn: fn}
	heap.Push(&f.queue, t)
	return t
}

// Advance сдвигает время на d и выполняет все задачи, срок которых наступил,
// включая задачи, поставленные самими задачами в пределах окна.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		if f.queue.Len() == 0 || f.queue[0].at.After(target) {
			f.now = target
			f.mu.Unlock()
			return
		}
		t := heap.Pop(&f.queue).(*fakeTask)
		if t.at.After(f.now) {
			f.now = t.at
		}
		f.mu.Unlock()

		t.fn()
	}
}

// Pending возвращает количество задач, ожидающих выполнения.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue.Len()
}

type fakeTask struct {
	clock *Fake
	at    time.Time
	seq   uint64
	fn    func()
	index int
}

func (t *fakeTask) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.index < 0 {
		return false
	}
	heap.Remove(&t.clock.queue, t.index)
	return true
}

type taskQueue []*fakeTask

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x interface{}) {
	t := x.(*fakeTask)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}
