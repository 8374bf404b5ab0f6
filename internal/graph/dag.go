package graph

import (
	"github.com/shaiso/Conductor/internal/domain"
)

// Registry — то, что Build требует от реестра задач:
// возможность проверить, что имя зарегистрировано.
type Registry interface {
	Has(name string) bool
}

// Node — узел DAG, одна задача flow.
type Node struct {
	// Name — имя задачи.
	Name string

	// Parents — узлы, от которых зависит этот узел,
	// в порядке объявления рёбер.
	Parents []*Node

	// Children — узлы, которые зависят от этого узла,
	// в порядке объявления рёбер.
	Children []*Node

	// InDegree — количество входящих рёбер.
	InDegree int

	// DeclIndex — порядковый номер первого появления имени в DSL.
	// Используется как tie-break при топологической сортировке.
	DeclIndex int
}

// IsLeaf возвращает true, если у узла нет потомков.
// Выходы COMPLETED-листьев образуют итоговый результат flow.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// DAG — направленный ациклический граф задач flow.
type DAG struct {
	// FlowName — имя flow, из которого построен граф.
	FlowName string

	// Nodes — все узлы графа (имя задачи → узел).
	Nodes map[string]*Node

	// Roots — узлы без зависимостей, в порядке объявления.
	Roots []*Node

	// Order — топологический порядок узлов. Стабилен: при равных
	// возможностях раньше идёт узел, объявленный раньше.
	Order []*Node
}

// Build строит DAG из определения flow.
//
// Возвращает *Error вида UnknownTask, если ребро ссылается на имя,
// отсутствующее в реестре, или CycleDetected с путём цикла.
func Build(def *domain.FlowDefinition, reg Registry) (*DAG, error) {
	if len(def.Edges) == 0 {
		return nil, ErrEmptyFlow
	}

	dag := &DAG{
		FlowName: def.Name,
		Nodes:    make(map[string]*Node),
	}

	// Узлы в порядке первого появления имени.
	names := def.TaskNames()
	for i, name := range names {
		if reg != nil && !reg.Has(name) {
			return nil, &Error{Kind: KindUnknownTask, Flow: def.Name, Task: name}
		}
		dag.Nodes[name] = &Node{Name: name, DeclIndex: i}
	}

	// Рёбра в порядке объявления, дубликаты не учитываются повторно.
	for _, edge := range def.Edges {
		from := dag.Nodes[edge.Source]
		for _, target := range edge.Targets {
			dag.addEdge(from, dag.Nodes[target])
		}
	}

	// Цикл ищется обходом в глубину с трёхцветной раскраской,
	// чтобы сообщить путь цикла, а не только факт его наличия.
	if cycle := dag.findCycle(names); cycle != nil {
		return nil, &Error{Kind: KindCycleDetected, Flow: def.Name, Cycle: cycle}
	}

	for _, name := range names {
		if node := dag.Nodes[name]; node.InDegree == 0 {
			dag.Roots = append(dag.Roots, node)
		}
	}

	dag.Order = dag.topologicalSort()
	return dag, nil
}

// addEdge добавляет ребро между узлами, игнорируя дубликаты,
// чтобы избежать двойного учёта InDegree.
func (d *DAG) addEdge(from, to *Node) {
	for _, parent := range to.Parents {
		if parent == from {
			return
		}
	}
	from.Children = append(from.Children, to)
	to.Parents = append(to.Parents, from)
	to.InDegree++
}

// Цвета узлов при поиске цикла.
const (
	colorWhite = iota // не посещался
	colorGray         // в текущем пути обхода
	colorBlack        // обход завершён
)

// findCycle ищет цикл обходом в глубину.
// Возвращает замкнутый путь цикла либо nil, если граф ацикличен.
// Порядок старта и обхода соседей фиксирован порядком объявления,
// поэтому для одного входа путь цикла всегда одинаков.
func (d *DAG) findCycle(names []string) []string {
	color := make(map[string]int, len(d.Nodes))
	var stack []string
	var cycle []string

	var visit func(node *Node) bool
	visit = func(node *Node) bool {
		color[node.Name] = colorGray
		stack = append(stack, node.Name)

		for _, child := range node.Children {
			switch color[child.Name] {
			case colorGray:
				// Ребро назад в серый узел — цикл. Отрезаем путь
				// от первого вхождения узла и замыкаем его.
				for i, name := range stack {
					if name == child.Name {
						cycle = append(append([]string{}, stack[i:]...), child.Name)
						return true
					}
				}
			case colorWhite:
				if visit(child) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[node.Name] = colorBlack
		return false
	}

	for _, name := range names {
		if color[name] == colorWhite {
			if visit(d.Nodes[name]) {
				return cycle
			}
		}
	}
	return nil
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Среди узлов с нулевым остаточным InDegree первым берётся узел
// с меньшим DeclIndex: последовательное выполнение детерминировано.
// Вызывается после findCycle, поэтому сортировка всегда полна.
func (d *DAG) topologicalSort() []*Node {
	inDegree := make(map[string]int, len(d.Nodes))
	for name, node := range d.Nodes {
		inDegree[name] = node.InDegree
	}

	ready := make([]*Node, 0, len(d.Roots))
	for _, node := range d.Roots {
		ready = insertByDecl(ready, node)
	}

	order := make([]*Node, 0, len(d.Nodes))
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		order = append(order, node)

		for _, child := range node.Children {
			inDegree[child.Name]--
			if inDegree[child.Name] == 0 {
				ready = insertByDecl(ready, child)
			}
		}
	}
	return order
}

// insertByDecl вставляет узел в срез, отсортированный по DeclIndex.
func insertByDecl(nodes []*Node, node *Node) []*Node {
	i := len(nodes)
	for j, n := range nodes {
		if node.DeclIndex < n.DeclIndex {
			i = j
			break
		}
	}
	nodes = append(nodes, nil)
	copy(nodes[i+1:], nodes[i:])
	nodes[i] = node
	return nodes
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}

// Node возвращает узел по имени задачи. Nil, если узла нет.
func (d *DAG) Node(name string) *Node {
	return d.Nodes[name]
}

// Leaves возвращает узлы без потомков в топологическом порядке.
func (d *DAG) Leaves() []*Node {
	leaves := make([]*Node, 0)
	for _, node := range d.Order {
		if node.IsLeaf() {
			leaves = append(leaves, node)
		}
	}
	return leaves
}

// Descendants возвращает все строгие потомки узла (узлы, достижимые
// из него по рёбрам) в топологическом порядке. Используется движком
// для каскадного SKIPPED при падении предка.
func (d *DAG) Descendants(name string) []*Node {
	start := d.Nodes[name]
	if start == nil {
		return nil
	}

	reachable := make(map[string]bool)
	var mark func(node *Node)
	mark = func(node *Node) {
		for _, child := range node.Children {
			if !reachable[child.Name] {
				reachable[child.Name] = true
				mark(child)
			}
		}
	}
	mark(start)

	result := make([]*Node, 0, len(reachable))
	for _, node := range d.Order {
		if reachable[node.Name] {
			result = append(result, node)
		}
	}
	return result
}
